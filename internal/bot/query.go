package bot

import (
	"fmt"
	"regexp"
	"strings"

	"niceguy/internal/config"
	"niceguy/internal/util"
	"niceguy/internal/xclient"
)

// Query is the matching criterion for one run.
type Query struct {
	Pattern string
	// config.ModeLiteral, config.ModeQuoted or config.ModeRegexp
	Mode string
	// Platform query used in regexp mode. Defaults to the expression's literal prefix.
	Terms           string
	Lang            string
	Locale          string
	Count           int
	ResultType      string
	ExcludeRetweets bool
}

// QueryFromConfig builds a Query from the search section of the config.
func QueryFromConfig(c config.SearchConfig) Query {
	return Query{
		Pattern:         c.Pattern,
		Mode:            c.Mode,
		Terms:           c.Terms,
		Lang:            c.Lang,
		Locale:          c.Locale,
		Count:           c.Count,
		ResultType:      c.ResultType,
		ExcludeRetweets: c.ExcludeRetweets,
	}
}

// compile returns the request parameters and, in regexp mode, the expression
// that returned posts must match.
func (q Query) compile() (xclient.SearchParams, *regexp.Regexp, error) {
	p := xclient.SearchParams{
		Lang:            q.Lang,
		Locale:          q.Locale,
		Count:           q.Count,
		ResultType:      q.ResultType,
		ExcludeRetweets: q.ExcludeRetweets,
	}
	if strings.TrimSpace(q.Pattern) == "" {
		return p, nil, fmt.Errorf("%w: empty search pattern", ErrConfig)
	}
	switch q.Mode {
	case "", config.ModeLiteral:
		p.Query = q.Pattern
		return p, nil, nil
	case config.ModeQuoted:
		p.Query = util.Quote(q.Pattern)
		return p, nil, nil
	case config.ModeRegexp:
		re, err := regexp.Compile(q.Pattern)
		if err != nil {
			return p, nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		terms := q.Terms
		if strings.TrimSpace(terms) == "" {
			terms, _ = re.LiteralPrefix()
		}
		if strings.TrimSpace(terms) == "" {
			return p, nil, fmt.Errorf("%w: regexp %q has no literal prefix; set search terms", ErrConfig, q.Pattern)
		}
		p.Query = util.NormalizeWhitespace(terms)
		return p, re, nil
	default:
		return p, nil, fmt.Errorf("%w: unknown search mode %q", ErrConfig, q.Mode)
	}
}

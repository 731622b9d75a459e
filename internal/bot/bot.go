// Package bot runs the search and reply pipeline: find posts matching a
// query, collect their authors, and answer each one with a canned message.
package bot

import (
	"context"
	"errors"
	"fmt"

	"niceguy/internal/config"
	"niceguy/internal/corpus"
	"niceguy/internal/logging"
	"niceguy/internal/metrics"
	"niceguy/internal/model"
	"niceguy/internal/util"
	"niceguy/internal/xclient"
)

// Searcher runs one platform search.
type Searcher interface {
	SearchPosts(ctx context.Context, p xclient.SearchParams) ([]model.Post, error)
}

// Options wires the agent's collaborators.
type Options struct {
	Searcher  Searcher
	NewPoster PosterFactory
	Corpus    corpus.Source
	// Defaults to a time-seeded corpus.ShuffleChooser.
	Chooser corpus.Chooser
	// Reload the corpus before every reply instead of once per run.
	ReloadCorpus bool
	// config.OnErrorFailFast (default) or config.OnErrorIsolate
	OnError string
	// Output mode label for metrics and logs; config.OutputPost by default.
	Mode string
}

// Report summarizes a run.
type Report struct {
	Searched   int
	Recipients int
	Submitted  int
	Failed     int
}

// Draft is one outgoing reply.
type Draft struct {
	Recipient string
	Message   string
	Body      string
}

// Compose formats a reply to recipient.
func Compose(recipient, message string) Draft {
	return Draft{
		Recipient: recipient,
		Message:   message,
		Body:      fmt.Sprintf("@%s : %s", recipient, message),
	}
}

// Agent holds the credentials, the recipients found by Search and the
// poster bound by ConfigureAuth. It is not safe for concurrent use.
type Agent struct {
	creds      config.Credentials
	opts       Options
	recipients []string
	poster     Poster
	messages   corpus.Corpus
	report     Report
}

// New validates the credentials and collaborators and returns an agent with
// an empty recipient list.
func New(creds config.Credentials, opts Options) (*Agent, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if opts.Searcher == nil || opts.NewPoster == nil || opts.Corpus == nil {
		return nil, fmt.Errorf("%w: searcher, poster factory and corpus are required", ErrConfig)
	}
	switch opts.OnError {
	case "":
		opts.OnError = config.OnErrorFailFast
	case config.OnErrorFailFast, config.OnErrorIsolate:
	default:
		return nil, fmt.Errorf("%w: unknown onError policy %q", ErrConfig, opts.OnError)
	}
	if opts.Mode == "" {
		opts.Mode = config.OutputPost
	}
	if opts.Chooser == nil {
		opts.Chooser = corpus.NewShuffleChooser(0)
	}
	return &Agent{creds: creds, opts: opts, recipients: []string{}}, nil
}

// Recipients returns a copy of the recipient list in discovery order.
func (a *Agent) Recipients() []string {
	out := make([]string, len(a.recipients))
	copy(out, a.recipients)
	return out
}

// Report returns the counters of the run so far.
func (a *Agent) Report() Report { return a.report }

// Search issues one search request and appends the author of every matching
// post to the recipient list, in the order returned. Authors are not deduplicated.
func (a *Agent) Search(ctx context.Context, q Query) error {
	params, re, err := q.compile()
	if err != nil {
		return err
	}
	metrics.Searches.Inc()
	posts, err := a.opts.Searcher.SearchPosts(ctx, params)
	if err != nil {
		metrics.SearchErrors.Inc()
		return fmt.Errorf("%w: %q: %w", ErrSearch, params.Query, err)
	}
	a.report.Searched += len(posts)
	added := 0
	for _, p := range posts {
		if re != nil && !re.MatchString(p.Text) {
			continue
		}
		name := util.TrimMention(p.AuthorName)
		if name == "" {
			logging.Warn("search_post_without_author", map[string]any{"post_id": p.ID, "author_id": p.AuthorID})
			continue
		}
		a.recipients = append(a.recipients, name)
		added++
	}
	a.report.Recipients += added
	metrics.Recipients.Add(float64(added))
	logging.Info("search_done", map[string]any{"query": params.Query, "posts": len(posts), "recipients": added})
	return nil
}

// ConfigureAuth binds the agent's credentials into a fresh poster. Calling it
// again rebinds the same credentials and has no other effect.
func (a *Agent) ConfigureAuth() error {
	if err := a.creds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	p, err := a.opts.NewPoster(a.creds)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.poster = p
	return nil
}

// Reply sends one reply per recipient in discovery order. Under fail_fast the
// first rejected post ends the loop; under isolate every recipient is tried
// and all failures are returned together. Corpus errors always end the loop.
func (a *Agent) Reply(ctx context.Context) error {
	if a.poster == nil {
		return ErrNotConfigured
	}
	var failures []error
	for i, name := range a.recipients {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(failures, err)...)
		}
		msgs, err := a.loadCorpus()
		if err != nil {
			return errors.Join(append(failures, fmt.Errorf("%w: %w", ErrCorpus, err))...)
		}
		msg, err := a.opts.Chooser.Choose(msgs)
		if err != nil {
			return errors.Join(append(failures, fmt.Errorf("%w: %w", ErrCorpus, err))...)
		}
		d := Compose(name, msg)
		if err := a.poster.PostStatus(ctx, d.Body); err != nil {
			a.report.Failed++
			metrics.IncReplyError(a.opts.Mode)
			err = fmt.Errorf("%w: reply %d to @%s: %w", ErrSubmit, i+1, name, err)
			if a.opts.OnError != config.OnErrorIsolate {
				return err
			}
			logging.Error("reply_failed", map[string]any{"recipient": name, "error": err.Error()})
			failures = append(failures, err)
			continue
		}
		a.report.Submitted++
		metrics.IncReply(a.opts.Mode)
		logging.Debug("reply_sent", map[string]any{"recipient": name, "mode": a.opts.Mode})
	}
	return errors.Join(failures...)
}

// Run is the whole pipeline: Search, ConfigureAuth, Reply.
func (a *Agent) Run(ctx context.Context, q Query) (Report, error) {
	if err := a.Search(ctx, q); err != nil {
		return a.report, err
	}
	if err := a.ConfigureAuth(); err != nil {
		return a.report, err
	}
	err := a.Reply(ctx)
	return a.report, err
}

func (a *Agent) loadCorpus() (corpus.Corpus, error) {
	if a.messages != nil && !a.opts.ReloadCorpus {
		return a.messages, nil
	}
	c, err := a.opts.Corpus.Load()
	if err != nil {
		return nil, err
	}
	a.messages = c
	return c, nil
}

package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niceguy/internal/config"
	"niceguy/internal/corpus"
	"niceguy/internal/model"
	"niceguy/internal/xclient"
)

var testCreds = config.Credentials{
	ConsumerKey:       "ck",
	ConsumerSecret:    "cs",
	AccessToken:       "at",
	AccessTokenSecret: "as",
}

type fakeSearcher struct {
	posts []model.Post
	err   error
	calls []xclient.SearchParams
}

func (f *fakeSearcher) SearchPosts(_ context.Context, p xclient.SearchParams) ([]model.Post, error) {
	f.calls = append(f.calls, p)
	return f.posts, f.err
}

type recordingPoster struct {
	bodies []string
	// fail maps a 1-based call number to the error it returns
	fail map[int]error
}

func (r *recordingPoster) PostStatus(_ context.Context, body string) error {
	r.bodies = append(r.bodies, body)
	if err, ok := r.fail[len(r.bodies)]; ok {
		return err
	}
	return nil
}

type countingSource struct {
	c     corpus.Corpus
	loads int
}

func (s *countingSource) Load() (corpus.Corpus, error) {
	s.loads++
	return s.c.Load()
}

var firstMessage = corpus.ChooserFunc(func(c corpus.Corpus) (string, error) { return c[0], nil })

func authors(names ...string) []model.Post {
	out := make([]model.Post, 0, len(names))
	for i, n := range names {
		out = append(out, model.Post{ID: fmt.Sprint(i + 1), AuthorName: n, Text: "wedding day"})
	}
	return out
}

type harness struct {
	searcher *fakeSearcher
	poster   *recordingPoster
	bound    []config.Credentials
	agent    *Agent
}

func newHarness(t *testing.T, posts []model.Post, src corpus.Source, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{searcher: &fakeSearcher{posts: posts}, poster: &recordingPoster{}}
	opts := Options{
		Searcher: h.searcher,
		NewPoster: func(c config.Credentials) (Poster, error) {
			h.bound = append(h.bound, c)
			return h.poster, nil
		},
		Corpus:  src,
		Chooser: firstMessage,
	}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(testCreds, opts)
	require.NoError(t, err)
	h.agent = a
	return h
}

func TestWeddingScenario(t *testing.T) {
	h := newHarness(t, authors("alice", "bob", "alice"), corpus.Corpus{"congrats!", "best wishes"}, nil)

	rep, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)

	require.Len(t, h.searcher.calls, 1)
	assert.Equal(t, "wedding", h.searcher.calls[0].Query)
	assert.Equal(t, []string{"@alice : congrats!", "@bob : congrats!", "@alice : congrats!"}, h.poster.bodies)
	assert.Equal(t, Report{Searched: 3, Recipients: 3, Submitted: 3}, rep)
}

func TestSearchKeepsProviderOrderAndDuplicates(t *testing.T) {
	h := newHarness(t, authors("carol", "alice", "carol", "bob"), corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: "wedding"}))
	assert.Equal(t, []string{"carol", "alice", "carol", "bob"}, h.agent.Recipients())
}

func TestSearchPassesFilters(t *testing.T) {
	h := newHarness(t, nil, corpus.Corpus{"x"}, nil)
	q := Query{Pattern: "結婚", Mode: config.ModeQuoted, Lang: "ja", Locale: "ja", Count: 50, ResultType: "recent", ExcludeRetweets: true}
	require.NoError(t, h.agent.Search(context.Background(), q))
	assert.Equal(t, xclient.SearchParams{
		Query: `"結婚"`, Lang: "ja", Locale: "ja", Count: 50, ResultType: "recent", ExcludeRetweets: true,
	}, h.searcher.calls[0])
}

func TestSearchSkipsPostsWithoutAuthor(t *testing.T) {
	posts := authors("alice", "", "bob")
	h := newHarness(t, posts, corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: "wedding"}))
	assert.Equal(t, []string{"alice", "bob"}, h.agent.Recipients())
	assert.Equal(t, 3, h.agent.Report().Searched)
}

func TestRegexpModeFiltersByText(t *testing.T) {
	posts := []model.Post{
		{AuthorName: "alice", Text: "we got married!"},
		{AuthorName: "bob", Text: "marriage counseling ad"},
		{AuthorName: "carol", Text: "Married last week"},
	}
	h := newHarness(t, posts, corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: `(?i)married`, Mode: config.ModeRegexp, Terms: "married"}))
	assert.Equal(t, "married", h.searcher.calls[0].Query)
	assert.Equal(t, []string{"alice", "carol"}, h.agent.Recipients())
}

func TestRegexpModeDefaultsToLiteralPrefix(t *testing.T) {
	posts := []model.Post{
		{AuthorName: "alice", Text: "結婚しました"},
		{AuthorName: "bob", Text: "結婚式"},
		{AuthorName: "carol", Text: "結婚相談所の広告"},
	}
	h := newHarness(t, posts, corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: `結婚(式|しました)`, Mode: config.ModeRegexp}))
	assert.Equal(t, "結婚", h.searcher.calls[0].Query)
	assert.Equal(t, []string{"alice", "bob"}, h.agent.Recipients())
}

func TestRegexpWithoutPrefixOrTermsIsConfigError(t *testing.T) {
	h := newHarness(t, nil, corpus.Corpus{"x"}, nil)
	err := h.agent.Search(context.Background(), Query{Pattern: `.*wed`, Mode: config.ModeRegexp})
	assert.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, h.searcher.calls)

	err = h.agent.Search(context.Background(), Query{Pattern: `(`, Mode: config.ModeRegexp, Terms: "x"})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSearchErrorAbortsBeforeReplies(t *testing.T) {
	h := newHarness(t, nil, corpus.Corpus{"x"}, nil)
	h.searcher.err = errors.New("connection reset")

	_, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	assert.ErrorIs(t, err, ErrSearch)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, h.bound)
	assert.Empty(t, h.poster.bodies)
}

func TestZeroResultsSucceedsWithoutSubmissions(t *testing.T) {
	missing := corpus.File("/nonexistent/bot.txt")
	h := newHarness(t, nil, missing, nil)
	rep, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)
	assert.Empty(t, h.poster.bodies)
	assert.Equal(t, Report{}, rep)
}

func TestEmptyCorpusFailsBeforeAnySubmission(t *testing.T) {
	h := newHarness(t, authors("alice", "bob"), corpus.Corpus{}, nil)
	_, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	assert.ErrorIs(t, err, ErrCorpus)
	assert.ErrorIs(t, err, corpus.ErrEmpty)
	assert.Empty(t, h.poster.bodies)
}

func TestReplyRequiresConfigureAuth(t *testing.T) {
	h := newHarness(t, authors("alice"), corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: "wedding"}))
	assert.ErrorIs(t, h.agent.Reply(context.Background()), ErrNotConfigured)
	assert.Empty(t, h.poster.bodies)
}

func TestConfigureAuthIsIdempotent(t *testing.T) {
	h := newHarness(t, authors("alice"), corpus.Corpus{"x"}, nil)
	require.NoError(t, h.agent.Search(context.Background(), Query{Pattern: "wedding"}))
	require.NoError(t, h.agent.ConfigureAuth())
	require.NoError(t, h.agent.ConfigureAuth())

	require.Len(t, h.bound, 2)
	assert.Equal(t, h.bound[0], h.bound[1])
	assert.Equal(t, testCreds, h.bound[0])
	assert.Empty(t, h.poster.bodies)

	require.NoError(t, h.agent.Reply(context.Background()))
	assert.Equal(t, []string{"@alice : x"}, h.poster.bodies)
}

func TestRepliesMatchRecipientsWithRandomChoice(t *testing.T) {
	msgs := corpus.Corpus{"congrats!", "best wishes", "おめでとう"}
	names := []string{"a", "b", "c", "a", "d", "e", "f"}
	h := newHarness(t, authors(names...), msgs, func(o *Options) { o.Chooser = corpus.NewShuffleChooser(7) })

	_, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)
	require.Len(t, h.poster.bodies, len(names))
	for i, body := range h.poster.bodies {
		prefix := "@" + names[i] + " : "
		require.True(t, strings.HasPrefix(body, prefix), body)
		assert.Contains(t, msgs, strings.TrimPrefix(body, prefix))
	}
}

func TestFailFastStopsAtFirstRejection(t *testing.T) {
	h := newHarness(t, authors("alice", "bob", "carol"), corpus.Corpus{"hi"}, nil)
	dup := &xclient.APIError{Status: 403, Code: xclient.CodeDuplicate, Message: "Status is a duplicate."}
	h.poster.fail = map[int]error{2: dup}

	rep, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmit)
	var apiErr *xclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsDuplicate())
	assert.Contains(t, err.Error(), "@bob")
	assert.Equal(t, []string{"@alice : hi", "@bob : hi"}, h.poster.bodies)
	assert.Equal(t, Report{Searched: 3, Recipients: 3, Submitted: 1, Failed: 1}, rep)
}

func TestIsolateAttemptsEveryRecipient(t *testing.T) {
	h := newHarness(t, authors("alice", "bob", "carol", "dave"), corpus.Corpus{"hi"}, func(o *Options) {
		o.OnError = config.OnErrorIsolate
	})
	h.poster.fail = map[int]error{1: errors.New("auth failure"), 3: errors.New("rate limit")}

	rep, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmit)
	assert.Contains(t, err.Error(), "@alice")
	assert.Contains(t, err.Error(), "@carol")
	assert.NotContains(t, err.Error(), "@bob")
	assert.Len(t, h.poster.bodies, 4)
	assert.Equal(t, Report{Searched: 4, Recipients: 4, Submitted: 2, Failed: 2}, rep)
}

type failingSource struct {
	loads  int
	failAt int
}

func (s *failingSource) Load() (corpus.Corpus, error) {
	s.loads++
	if s.loads == s.failAt {
		return nil, errors.New("corpus vanished")
	}
	return corpus.Corpus{"hi"}, nil
}

func TestIsolateKeepsEarlierFailuresWhenCorpusBreaks(t *testing.T) {
	src := &failingSource{failAt: 2}
	h := newHarness(t, authors("alice", "bob", "carol"), src, func(o *Options) {
		o.OnError = config.OnErrorIsolate
		o.ReloadCorpus = true
	})
	h.poster.fail = map[int]error{1: errors.New("auth failure")}

	rep, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmit)
	assert.ErrorIs(t, err, ErrCorpus)
	assert.Contains(t, err.Error(), "@alice")
	assert.Equal(t, []string{"@alice : hi"}, h.poster.bodies)
	assert.Equal(t, 1, rep.Failed)
}

type cancellingPoster struct {
	recordingPoster
	cancel context.CancelFunc
}

func (p *cancellingPoster) PostStatus(ctx context.Context, body string) error {
	defer p.cancel()
	return p.recordingPoster.PostStatus(ctx, body)
}

func TestIsolateKeepsEarlierFailuresWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancellingPoster{
		recordingPoster: recordingPoster{fail: map[int]error{1: errors.New("auth failure")}},
		cancel:          cancel,
	}
	a, err := New(testCreds, Options{
		Searcher:  &fakeSearcher{posts: authors("alice", "bob")},
		NewPoster: func(config.Credentials) (Poster, error) { return p, nil },
		Corpus:    corpus.Corpus{"hi"},
		OnError:   config.OnErrorIsolate,
	})
	require.NoError(t, err)

	_, err = a.Run(ctx, Query{Pattern: "wedding"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"@alice : hi"}, p.bodies)
}

func TestCorpusLoadedOnceUnlessReloadRequested(t *testing.T) {
	src := &countingSource{c: corpus.Corpus{"hi"}}
	h := newHarness(t, authors("a", "b", "c"), src, nil)
	_, err := h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, 1, src.loads)

	src = &countingSource{c: corpus.Corpus{"hi"}}
	h = newHarness(t, authors("a", "b", "c"), src, func(o *Options) { o.ReloadCorpus = true })
	_, err = h.agent.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, 3, src.loads)
}

func TestPreviewModeWritesDrafts(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeSearcher{posts: authors("alice", "bob")}
	a, err := New(testCreds, Options{
		Searcher:  s,
		NewPoster: PreviewPosterFactory(&buf),
		Corpus:    corpus.Corpus{"congrats!"},
		Mode:      config.OutputPreview,
	})
	require.NoError(t, err)
	rep, err := a.Run(context.Background(), Query{Pattern: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, "@alice : congrats!\n@bob : congrats!\n", buf.String())
	assert.Equal(t, 2, rep.Submitted)
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	_, err := New(config.Credentials{ConsumerKey: "ck"}, Options{
		Searcher:  &fakeSearcher{},
		NewPoster: PreviewPosterFactory(nil),
		Corpus:    corpus.Corpus{"x"},
	})
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New(testCreds, Options{
		Searcher:  &fakeSearcher{},
		NewPoster: PreviewPosterFactory(nil),
		Corpus:    corpus.Corpus{"x"},
		OnError:   "shrug",
	})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCompose(t *testing.T) {
	d := Compose("alice", "best wishes")
	assert.Equal(t, Draft{Recipient: "alice", Message: "best wishes", Body: "@alice : best wishes"}, d)
}

func TestXPosterFactoryBindsCredentials(t *testing.T) {
	p, err := XPosterFactory(xclient.NewHTTPClient(""), "")(testCreds)
	require.NoError(t, err)
	v1, ok := p.(*xclient.V1Client)
	require.True(t, ok)
	assert.Equal(t, "ck", v1.ConsumerKey)
	assert.Equal(t, "cs", v1.ConsumerSecret)
	assert.Equal(t, "at", v1.AccessToken)
	assert.Equal(t, "as", v1.AccessSecret)
}

package bot

import (
	"context"
	"fmt"
	"io"
	"os"

	"niceguy/internal/config"
	"niceguy/internal/xclient"
)

// Poster submits one reply body.
type Poster interface {
	PostStatus(ctx context.Context, body string) error
}

// PosterFactory binds credentials into a Poster.
type PosterFactory func(creds config.Credentials) (Poster, error)

// XPosterFactory posts through X API v1.1 statuses/update, sharing base's
// transport and pacer. apiBaseURL overrides the v1.1 root when set.
func XPosterFactory(base *xclient.HTTPClient, apiBaseURL string) PosterFactory {
	return func(c config.Credentials) (Poster, error) {
		v1 := xclient.NewV1Client(base, c.ConsumerKey, c.ConsumerSecret, c.AccessToken, c.AccessTokenSecret)
		v1.SetBaseURL(apiBaseURL)
		return v1, nil
	}
}

// PreviewPoster writes each body on its own line instead of posting it.
type PreviewPoster struct {
	W io.Writer
}

func (p PreviewPoster) PostStatus(_ context.Context, body string) error {
	w := p.W
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, body)
	return err
}

// PreviewPosterFactory ignores the credentials and returns a PreviewPoster on w.
func PreviewPosterFactory(w io.Writer) PosterFactory {
	return func(config.Credentials) (Poster, error) { return PreviewPoster{W: w}, nil }
}

package service

import "context"

// AppSearch looks a service up in an app directory and returns the
// artwork URL of the best match, or an empty string when none qualifies
type AppSearch interface {
	Name() string
	SearchArtwork(ctx context.Context, name, category string) (string, error)
}

// IconProber checks that a URL serves image-like content
type IconProber interface {
	Probe(ctx context.Context, url string) bool
}

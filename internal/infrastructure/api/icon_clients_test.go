// internal/infrastructure/api/icon_clients_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestITunesSearchClientSearchArtwork(t *testing.T) {
	var countries []string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		countries = append(countries, query.Get("country"))
		assert.Equal(t, "software", query.Get("entity"))
		assert.Equal(t, "8", query.Get("limit"))
		assert.Equal(t, "Spotify", query.Get("term"))

		if query.Get("country") == "cn" {
			w.Write([]byte(`{"resultCount": 0, "results": []}`))
			return
		}
		w.Write([]byte(`{"resultCount": 2, "results": [
			{"trackName": "Music Player", "bundleId": "com.example.player", "artworkUrl100": "https://example.com/player.png"},
			{"trackName": "Spotify - Music and Podcasts", "bundleId": "com.spotify.client", "primaryGenreName": "Music",
			 "sellerName": "Spotify", "artworkUrl512": "https://example.com/spotify512.png"}
		]}`))
	}))
	defer mockServer.Close()

	client := NewITunesSearchClient(mockServer.URL, nil, 0, testOptions())
	artwork, err := client.SearchArtwork(context.Background(), "Spotify", "")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/spotify512.png", artwork)
	assert.Equal(t, []string{"cn", "us"}, countries)
}

func TestITunesSearchClientAllCountriesFail(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer mockServer.Close()

	opts := testOptions()
	opts.Retries = 0
	client := NewITunesSearchClient(mockServer.URL, []string{"us"}, 5, opts)
	artwork, err := client.SearchArtwork(context.Background(), "Notion", "")

	assert.ErrorIs(t, err, entity.ErrUnavailable)
	assert.Empty(t, artwork)
}

func TestITunesSearchClientEmptyTerm(t *testing.T) {
	client := NewITunesSearchClient("http://127.0.0.1:1", nil, 0, testOptions())
	artwork, err := client.SearchArtwork(context.Background(), "   ", "")

	assert.NoError(t, err)
	assert.Empty(t, artwork)
}

func TestBestArtwork(t *testing.T) {
	results := []ITunesResult{
		{TrackName: "Unrelated", ArtworkURL512: "ftp://example.com/skip.png"},
		{TrackName: "Cloud Drive", BundleID: "com.other", ArtworkURL100: "https://example.com/a.png"},
		{TrackName: "Cloud Drive", BundleID: "com.other", PrimaryGenreName: "Utilities", ArtworkURL100: "https://example.com/b.png"},
	}

	// Genre matches the category, so the second Cloud Drive result wins
	assert.Equal(t, "https://example.com/b.png", BestArtwork("Cloud Drive", "utilities", results))

	// Without a category the first equal scoring result is kept
	assert.Equal(t, "https://example.com/a.png", BestArtwork("Cloud Drive", "", results))

	assert.Equal(t, "", BestArtwork("x", "", []ITunesResult{{TrackName: "x"}}))
}

func TestHTTPIconProber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/*,*/*;q=0.8", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("icon-bytes"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "image/png")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	prober := NewHTTPIconProber(opts)
	ctx := context.Background()

	assert.True(t, prober.Probe(ctx, server.URL+"/png"))
	assert.True(t, prober.Probe(ctx, server.URL+"/untyped"))
	assert.False(t, prober.Probe(ctx, server.URL+"/empty"))
	assert.False(t, prober.Probe(ctx, server.URL+"/missing"))
	assert.False(t, prober.Probe(ctx, server.URL+"/slow"))
	assert.False(t, prober.Probe(ctx, "http://127.0.0.1:1/unreachable"))
	assert.False(t, prober.Probe(ctx, "://bad-url"))
}

func TestProbeCapabilityChecks(t *testing.T) {
	assert.True(t, StatusAccepted(204))
	assert.False(t, StatusAccepted(301))
	assert.False(t, StatusAccepted(500))

	assert.True(t, ImageContentType("image/svg+xml"))
	assert.True(t, ImageContentType("application/x-icon"))
	assert.True(t, ImageContentType("IMAGE/PNG"))
	assert.False(t, ImageContentType("text/html"))
	assert.False(t, ImageContentType(""))

	assert.True(t, BodyNonEmpty(strings.NewReader("x")))
	assert.False(t, BodyNonEmpty(strings.NewReader("")))
}

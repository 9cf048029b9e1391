package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

const (
	itunesSearchURL  = "https://itunes.apple.com/search"
	itunesSearchName = "itunes-search"
)

// popularGenres earn a small score bonus when the caller gave no category
// that matches the result's genre
var popularGenres = map[string]struct{}{
	"music":         {},
	"entertainment": {},
	"productivity":  {},
}

// ITunesSearchClient searches the App Store directory for a service's
// artwork. Countries are tried in order; the first country whose results
// carry a usable artwork URL wins.
type ITunesSearchClient struct {
	searchURL string
	countries []string
	limit     int
	client    jsonClient
}

// NewITunesSearchClient creates a new App Store search client
func NewITunesSearchClient(searchURL string, countries []string, limit int, opts ClientOptions) *ITunesSearchClient {
	if searchURL == "" {
		searchURL = itunesSearchURL
	}
	if len(countries) == 0 {
		countries = []string{"cn", "us"}
	}
	if limit <= 0 {
		limit = 8
	}

	return &ITunesSearchClient{
		searchURL: searchURL,
		countries: countries,
		limit:     limit,
		client:    newJSONClient(opts, 6*time.Second),
	}
}

// ITunesResult is the subset of an App Store search result used for scoring
type ITunesResult struct {
	TrackName        string `json:"trackName"`
	BundleID         string `json:"bundleId"`
	PrimaryGenreName string `json:"primaryGenreName"`
	SellerName       string `json:"sellerName"`
	ArtworkURL512    string `json:"artworkUrl512"`
	ArtworkURL100    string `json:"artworkUrl100"`
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []ITunesResult `json:"results"`
}

// Name identifies the provider
func (c *ITunesSearchClient) Name() string {
	return itunesSearchName
}

// SearchArtwork returns the artwork URL of the best scoring result, or an
// empty string when no country produced one. Per-country failures are
// skipped; an error is returned only when every country failed.
func (c *ITunesSearchClient) SearchArtwork(ctx context.Context, name, category string) (string, error) {
	term := strings.TrimSpace(name)
	if term == "" {
		return "", nil
	}

	var errs []error
	for _, country := range c.countries {
		query := url.Values{}
		query.Set("term", term)
		query.Set("country", country)
		query.Set("entity", "software")
		query.Set("limit", strconv.Itoa(c.limit))
		reqURL := fmt.Sprintf("%s?%s", c.searchURL, query.Encode())

		var resp itunesResponse
		if err := c.client.getJSON(ctx, c.Name(), reqURL, &resp); err != nil {
			errs = append(errs, err)
			continue
		}

		if artwork := BestArtwork(term, category, resp.Results); artwork != "" {
			return artwork, nil
		}
	}

	if len(errs) == len(c.countries) {
		return "", errors.Join(errs...)
	}
	return "", nil
}

// BestArtwork picks the highest scoring result with an http(s) artwork URL.
// Ties keep the earliest result.
func BestArtwork(term, category string, results []ITunesResult) string {
	normalizedTerm := strings.ReplaceAll(entity.NormalizeServiceText(term), " ", "")
	normalizedCategory := entity.NormalizeServiceText(category)

	bestURL := ""
	bestScore := -1
	for _, item := range results {
		artwork := strings.TrimSpace(item.ArtworkURL512)
		if artwork == "" {
			artwork = strings.TrimSpace(item.ArtworkURL100)
		}
		if !strings.HasPrefix(artwork, "http") {
			continue
		}

		score := scoreResult(normalizedTerm, normalizedCategory, item)
		if score > bestScore {
			bestScore = score
			bestURL = artwork
		}
	}

	return bestURL
}

func scoreResult(term, category string, item ITunesResult) int {
	score := 0

	track := strings.ReplaceAll(entity.NormalizeServiceText(item.TrackName), " ", "")
	if track != "" && term != "" && (strings.Contains(track, term) || strings.Contains(term, track)) {
		score += 4
	}

	bundle := strings.ToLower(strings.TrimSpace(item.BundleID))
	if term != "" && strings.Contains(bundle, term) {
		score += 3
	}

	genre := entity.NormalizeServiceText(item.PrimaryGenreName)
	if genre != "" {
		if category != "" && (strings.Contains(category, genre) || strings.Contains(genre, category)) {
			score++
		} else if _, ok := popularGenres[genre]; ok {
			score++
		}
	}

	if strings.TrimSpace(item.SellerName) != "" {
		score++
	}

	return score
}

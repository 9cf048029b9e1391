package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

const (
	frankfurterBaseURL = "https://api.frankfurter.app"
	frankfurterName    = "frankfurter"
)

// FrankfurterClient fetches USD rates for an explicit set of codes from
// the Frankfurter API. It serves as the scoped secondary tier.
type FrankfurterClient struct {
	baseURL string
	client  jsonClient
}

// NewFrankfurterClient creates a new Frankfurter client. An empty baseURL
// selects the public endpoint.
func NewFrankfurterClient(baseURL string, opts ClientOptions) *FrankfurterClient {
	if baseURL == "" {
		baseURL = frankfurterBaseURL
	}

	return &FrankfurterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newJSONClient(opts, 6*time.Second),
	}
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]interface{} `json:"rates"`
}

// Name identifies the provider
func (c *FrankfurterClient) Name() string {
	return frankfurterName
}

// FetchRates returns USD rates for the requested codes the API knows about
func (c *FrankfurterClient) FetchRates(ctx context.Context, codes []string) (map[string]float64, error) {
	symbols := uniqueSorted(codes)
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("from", entity.BaseCurrency)
	query.Set("to", strings.Join(symbols, ","))
	reqURL := fmt.Sprintf("%s/latest?%s", c.baseURL, query.Encode())

	var resp frankfurterResponse
	if err := c.client.getJSON(ctx, c.Name(), reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Rates == nil {
		return nil, fmt.Errorf("%w: %s: payload has no rates", entity.ErrMalformed, c.Name())
	}

	rates := make(map[string]float64, len(symbols))
	for _, code := range symbols {
		if rate, ok := parseRateValue(resp.Rates[code]); ok {
			rates[code] = rate
		}
	}

	return rates, nil
}

func uniqueSorted(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

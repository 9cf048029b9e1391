package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

const (
	openERAPIBaseURL = "https://open.er-api.com"
	openERAPIName    = "open-er-api"
)

// OpenERAPIClient fetches the full USD rate table from open.er-api.com.
// It is the primary, bulk tier of the provider chain.
type OpenERAPIClient struct {
	baseURL string
	client  jsonClient
}

// NewOpenERAPIClient creates a new open.er-api client. An empty baseURL
// selects the public endpoint.
func NewOpenERAPIClient(baseURL string, opts ClientOptions) *OpenERAPIClient {
	if baseURL == "" {
		baseURL = openERAPIBaseURL
	}

	return &OpenERAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newJSONClient(opts, 6*time.Second),
	}
}

// openERResponse represents the response structure from open.er-api
type openERResponse struct {
	Result   string                 `json:"result"`
	BaseCode string                 `json:"base_code"`
	Rates    map[string]interface{} `json:"rates"`
}

// Name identifies the provider
func (c *OpenERAPIClient) Name() string {
	return openERAPIName
}

// FetchAllRates returns every USD rate the provider publishes. Entries
// that cannot be parsed are skipped; USD is always 1.
func (c *OpenERAPIClient) FetchAllRates(ctx context.Context) (map[string]float64, error) {
	reqURL := fmt.Sprintf("%s/v6/latest/%s", c.baseURL, entity.BaseCurrency)

	var resp openERResponse
	if err := c.client.getJSON(ctx, c.Name(), reqURL, &resp); err != nil {
		return nil, err
	}

	if resp.Result == "error" || resp.Rates == nil {
		return nil, fmt.Errorf("%w: %s: payload has no rates", entity.ErrMalformed, c.Name())
	}

	rates := make(map[string]float64, len(resp.Rates))
	for code, value := range resp.Rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if rate, ok := parseRateValue(value); ok {
			rates[code] = rate
		}
	}
	rates[entity.BaseCurrency] = 1.0

	return rates, nil
}

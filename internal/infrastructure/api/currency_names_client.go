package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

const (
	currencyNamesURL  = "https://openexchangerates.org/api/currencies.json"
	currencyNamesName = "openexchangerates-names"
)

// CurrencyNamesClient fetches the currency code to display name directory
type CurrencyNamesClient struct {
	url    string
	client jsonClient
}

// NewCurrencyNamesClient creates a new directory client. An empty url
// selects the public endpoint.
func NewCurrencyNamesClient(url string, opts ClientOptions) *CurrencyNamesClient {
	if url == "" {
		url = currencyNamesURL
	}

	return &CurrencyNamesClient{
		url:    url,
		client: newJSONClient(opts, 6*time.Second),
	}
}

// FetchCurrencyNames returns display names keyed by upper-case code
func (c *CurrencyNamesClient) FetchCurrencyNames(ctx context.Context) (map[string]string, error) {
	var payload map[string]interface{}
	if err := c.client.getJSON(ctx, currencyNamesName, c.url, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: %s: payload is not an object", entity.ErrMalformed, currencyNamesName)
	}

	names := make(map[string]string, len(payload))
	for code, raw := range payload {
		name, ok := raw.(string)
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if !ok || code == "" || name == "" {
			continue
		}
		names[code] = name
	}

	return names, nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrConversionUnavailable signals that a rate lookup failed or the target
// currency is unknown. Callers degrade to comparing the raw amount and
// flag the expense for review instead of blocking the workflow.
var ErrConversionUnavailable = errors.New("currency conversion unavailable")

// CurrencyClient fetches exchange rates from the exchangerate-api.com
// latest-rates endpoint. Lookups are bounded by the configured timeout so
// a slow rate provider can never stall an approval decision.
type CurrencyClient struct {
	baseURL string
	http    *http.Client
}

// NewCurrencyClient creates a currency client. baseURL is the latest-rates
// endpoint without the trailing base-currency segment.
func NewCurrencyClient(baseURL string, timeout time.Duration) *CurrencyClient {
	return &CurrencyClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Convert converts an amount in minor units from one currency to another,
// rounding half away from zero. Identical currencies convert to the same
// amount without a lookup. Any network, decode or missing-rate failure is
// reported as ErrConversionUnavailable.
func (c *CurrencyClient) Convert(ctx context.Context, amountCents int64, from, to string) (int64, error) {
	if from == to {
		return amountCents, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, from), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: rate provider returned status %d", ErrConversionUnavailable, resp.StatusCode)
	}

	var rates ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}

	rate, ok := rates.Rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: no rate from %s to %s", ErrConversionUnavailable, from, to)
	}

	return int64(math.Round(float64(amountCents) * rate)), nil
}

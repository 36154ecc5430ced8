package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ErrNoPricePoint means the provider answered but carried no usable price.
var ErrNoPricePoint = errors.New("no price point in provider response")

// The provider has no data before 2021-01-01; earlier day windows are raised
// to that floor before querying.
const minProviderTimestamp = 1609459200

// Client calls the external historical-price API under the reservoir limiter
// with local retry and exponential backoff.
type Client struct {
	apiKey   string
	baseURL  string
	networks map[string]string // request name -> provider name

	httpClient *http.Client
	reservoir  *Reservoir

	retries        int
	backoffMin     time.Duration
	backoffMax     time.Duration
	attemptTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOptions configures a Client. Zero values fall back to the defaults
// the service runs with in production.
type ClientOptions struct {
	APIKey         string
	BaseURL        string
	Networks       map[string]string
	Reservoir      *Reservoir
	Retries        int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	AttemptTimeout time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.Retries == 0 {
		opts.Retries = 5
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 2 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 10 * time.Second
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	return &Client{
		apiKey:         opts.APIKey,
		baseURL:        opts.BaseURL,
		networks:       opts.Networks,
		httpClient:     &http.Client{},
		reservoir:      opts.Reservoir,
		retries:        opts.Retries,
		backoffMin:     opts.BackoffMin,
		backoffMax:     opts.BackoffMax,
		attemptTimeout: opts.AttemptTimeout,
		sleep:          sleepCtx,
	}
}

func (c *Client) SupportsNetwork(network string) bool {
	_, ok := c.networks[network]
	return ok
}

type historicalRequest struct {
	Network   string `json:"network"`
	Address   string `json:"address"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type historicalResponse struct {
	Data []struct {
		Value json.Number `json:"value"`
	} `json:"data"`
}

// FetchDayPrice fetches the price for the UTC day containing ts. The whole
// retry loop runs under a single reservoir token.
func (c *Client) FetchDayPrice(ctx context.Context, token, network string, ts int64) (float64, error) {
	providerNetwork, ok := c.networks[network]
	if !ok {
		return 0, fmt.Errorf("unsupported network %q", network)
	}

	adjusted := ts
	if adjusted < minProviderTimestamp {
		adjusted = minProviderTimestamp
	}
	req := historicalRequest{
		Network:   providerNetwork,
		Address:   token,
		StartTime: time.Unix(adjusted, 0).UTC().Format(time.RFC3339),
		EndTime:   time.Unix(adjusted+86399, 0).UTC().Format(time.RFC3339),
	}

	if c.reservoir != nil {
		if err := c.reservoir.Acquire(ctx); err != nil {
			return 0, err
		}
		defer c.reservoir.Release()
	}

	backoff := c.backoffMin
	for attempt := 1; ; attempt++ {
		price, err := c.fetchOnce(ctx, req)
		if err == nil {
			return price, nil
		}
		if attempt > c.retries {
			return 0, fmt.Errorf("provider fetch for %s on %s failed after %d attempts: %w", token, providerNetwork, attempt, err)
		}

		log.Printf("[provider] retry %d for %s on %s: %v", attempt, token, providerNetwork, err)
		if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
			return 0, sleepErr
		}
		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, reqBody historicalRequest) (float64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/%s/tokens/historical", c.baseURL, c.apiKey)
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var decoded historicalResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode provider response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return 0, ErrNoPricePoint
	}
	price, err := decoded.Data[0].Value.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoPricePoint, err)
	}
	return price, nil
}

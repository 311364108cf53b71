package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/observability"
)

var (
	// ErrUnexpectedStatus wraps every non-2xx provider response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrCircuitOpen is returned without contacting the provider while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrBodyTooLarge is returned when the provider body exceeds maxBodyBytes.
	ErrBodyTooLarge = errors.New("provider body too large")
)

const maxBodyBytes = 4 << 20

// Client fetches the current-observations snapshot from the weather provider.
type Client struct {
	http *http.Client
	url  string
	cb   *gobreaker.CircuitBreaker
}

// New builds a client for url. The breaker opens after five consecutive
// failures and half-opens after a minute.
func New(httpClient *http.Client, url string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather_provider",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{http: httpClient, url: url, cb: cb}
}

// FetchSnapshot performs one GET and returns the body untouched.
func (c *Client) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.ProviderFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build provider request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "request provider feed")
		}
		defer resp.Body.Close()

		status = fmt.Sprintf("%dxx", resp.StatusCode/100)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Wrapf(ErrUnexpectedStatus, "provider returned %s", resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return nil, errors.Wrap(err, "read provider body")
		}
		if len(body) > maxBodyBytes {
			return nil, errors.Wrapf(ErrBodyTooLarge, "more than %d bytes", maxBodyBytes)
		}
		return models.Snapshot(body), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "circuit_open"
			return nil, errors.Wrap(ErrCircuitOpen, err.Error())
		}
		return nil, err
	}

	return result.(models.Snapshot), nil
}

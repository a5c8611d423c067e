// Package master fetches position exports from the master server.
package master

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
)

// PositionSource returns the exported public positions of one election.
type PositionSource interface {
	FetchPositions(ctx context.Context, electionID int64) ([]domain.PositionSyncRecord, error)
}

// Options configures a Client.
type Options struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	Attempts uint
	Delay    time.Duration
}

// Client pulls positions over HTTP. Requests are retried with backoff and
// guarded by a circuit breaker shared by all callers.
type Client struct {
	url      string
	apiKey   string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// Ensure Client implements PositionSource.
var _ PositionSource = (*Client)(nil)

// New creates a master server client.
func New(opts Options, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid positions sync url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}

	log := logger.Named("master")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "MasterServer",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	return &Client{
		url:      opts.URL,
		apiKey:   opts.APIKey,
		http:     &http.Client{Timeout: opts.Timeout},
		cb:       cb,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		logger:   log,
	}, nil
}

// FetchPositions downloads the positions of one election. A JSON object reply
// is the master's failure status and is not retried.
func (c *Client) FetchPositions(ctx context.Context, electionID int64) ([]domain.PositionSyncRecord, error) {
	var records []domain.PositionSyncRecord
	err := retry.Do(
		func() error {
			res, err := c.cb.Execute(func() (interface{}, error) {
				return c.fetch(ctx, electionID)
			})
			if err != nil {
				return err
			}
			records = res.([]domain.PositionSyncRecord)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying positions fetch",
				zap.Int64("google_civic_election_id", electionID),
				zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, electionID int64) ([]domain.PositionSyncRecord, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	q := u.Query()
	q.Set("google_civic_election_id", strconv.FormatInt(electionID, 10))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting positions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: master returned %s", domain.ErrSyncFailed, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: master returned %s", domain.ErrSyncFailed, resp.Status))
	}

	records, err := DecodePositions(body)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	return records, nil
}

// DecodePositions parses a sync-out body: a JSON array of records, or a
// {"success": false, "status": ...} object.
func DecodePositions(body []byte) ([]domain.PositionSyncRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var status domain.StatusResponse
		if err := json.Unmarshal(trimmed, &status); err != nil {
			return nil, fmt.Errorf("%w: decoding status: %v", domain.ErrSyncFailed, err)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncFailed, status.Status)
	}

	var records []domain.PositionSyncRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: decoding positions: %v", domain.ErrSyncFailed, err)
	}
	return records, nil
}

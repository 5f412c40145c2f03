// Package hub talks to the Home Assistant REST API.
//
// Every call degrades to a sentinel value on failure: CallScript returns
// false and State returns ErrorState. Callers never see an error.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/timfel/ha-display/internal/metrics"
)

// ErrorState is returned by State when the hub could not be read.
const ErrorState = "Error"

const (
	endpointScript = "script/turn_on"
	endpointStates = "states"
)

// Client is a Home Assistant API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Collector

	states singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics records every request in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client for the hub at baseURL authenticating with token.
// timeout bounds every request.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scriptRequest struct {
	EntityID string `json:"entity_id"`
}

type stateResponse struct {
	EntityID string  `json:"entity_id"`
	State    *string `json:"state"`
}

// CallScript runs script.<name> and reports whether the hub answered 200.
func (c *Client) CallScript(ctx context.Context, name string) bool {
	body, err := json.Marshal(scriptRequest{EntityID: "script." + name})
	if err != nil {
		c.log.Error().Err(err).Str("script", name).Msg("failed to encode script call")
		return false
	}
	resp, err := c.do(ctx, endpointScript, http.MethodPost, "/api/services/script/turn_on", bytes.NewReader(body))
	if err != nil {
		c.log.Error().Err(err).Str("script", name).Msg("failed to call script")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("script", name).Msg("script call rejected")
		return false
	}
	c.log.Debug().Str("script", name).Msg("script called")
	return true
}

// State returns the state field of entityID, or ErrorState.
// Concurrent reads of the same entity share one request. The shared request
// ignores the callers' cancellation and is bounded by the client timeout
// only, so one caller giving up does not fail the others.
func (c *Client) State(ctx context.Context, entityID string) string {
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.states.Do(entityID, func() (interface{}, error) {
		return c.fetchState(shared, entityID), nil
	})
	return v.(string)
}

func (c *Client) fetchState(ctx context.Context, entityID string) string {
	resp, err := c.do(ctx, endpointStates, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		c.log.Error().Err(err).Str("entity", entityID).Msg("failed to get state")
		return ErrorState
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("entity", entityID).Msg("failed to get state")
		return ErrorState
	}
	var st stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		c.log.Error().Err(err).Str("entity", entityID).Msg("failed to decode state")
		return ErrorState
	}
	if st.State == nil {
		c.log.Error().Str("entity", entityID).Msg("state missing from response")
		return ErrorState
	}
	return *st.State
}

// SwitchOn reports whether entityID is "on". Read failures count as off.
func (c *Client) SwitchOn(ctx context.Context, entityID string) bool {
	return c.State(ctx, entityID) == "on"
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveHubRequest(endpoint, 0, time.Since(start))
		return nil, err
	}
	c.metrics.ObserveHubRequest(endpoint, resp.StatusCode, time.Since(start))
	return resp, nil
}

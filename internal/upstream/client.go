// Package upstream reads the remote user and policy collections the gateway
// depends on. Every call is bounded by a timeout and bound to the caller's
// context, so a disconnected client abandons its in-flight upstream request.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"

	"github.com/koman-maciej/insurance/internal/telemetry"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 5 * time.Second

const maxPayloadBytes = 10 << 20

// ErrNotFound is returned when the upstream reports, or a lookup concludes,
// that the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error reports an upstream collection that could not be read: a transport
// failure, a timeout, an unexpected status or a payload of the wrong shape.
type Error struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client performs bounded GET requests against upstream collections and
// checks every payload against its expected shape.
type Client struct {
	http    *http.Client
	timeout time.Duration
	schemas *payloadSchemas
}

// NewClient creates a client whose requests time out after timeout.
// A nil httpClient gets a default client with the same timeout as a backstop.
func NewClient(httpClient *http.Client, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Client{http: httpClient, timeout: timeout, schemas: schemas}, nil
}

// getJSON fetches url, validates the body against schema and decodes it into
// out. A 404 wraps ErrNotFound only for single-entity lookups; a missing
// collection is an upstream failure like any other status.
func (c *Client) getJSON(ctx context.Context, source, url string, entityLookup bool, schema *jsonschema.Schema, out any) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerUpstream, "upstream.get",
		attribute.String(telemetry.AttrSource, source),
	)
	defer span.End()

	status, err := c.fetchJSON(ctx, source, url, entityLookup, schema, out)
	if status != 0 {
		span.SetAttributes(attribute.Int(telemetry.AttrStatusCode, status))
	}
	if errors.Is(err, ErrNotFound) {
		telemetry.AddEvent(span, "entity.not_found")
		return err
	}
	telemetry.RecordError(span, err)
	return err
}

func (c *Client) fetchJSON(ctx context.Context, source, url string, entityLookup bool, schema *jsonschema.Schema, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &Error{Source: source, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &Error{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && entityLookup {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return resp.StatusCode, fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &Error{Source: source, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return resp.StatusCode, &Error{Source: source, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if schema != nil {
		if err := validatePayload(schema, body); err != nil {
			return resp.StatusCode, &Error{Source: source, StatusCode: resp.StatusCode, Err: err}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &Error{Source: source, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return resp.StatusCode, nil
}

// Package homeassistant talks to a Home Assistant instance over its REST API.
// It implements every host port ResScene needs: state reads, service calls,
// area and label lookup and publishing of scene entities.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
)

// Client is a Home Assistant REST client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the instance at baseURL (e.g. http://homeassistant.local:8123)
// authenticating with a long-lived access token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  http.DefaultClient,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ ports.StateProvider   = (*Client)(nil)
	_ ports.StateLister     = (*Client)(nil)
	_ ports.EntityDirectory = (*Client)(nil)
	_ ports.ServiceCaller   = (*Client)(nil)
	_ ports.EntityPublisher = (*Client)(nil)
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// GetState reads /api/states/<entity_id>.
func (c *Client) GetState(ctx context.Context, entityID string) (*domain.EntityState, error) {
	var st domain.EntityState
	err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &st)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%s: %w", entityID, domain.ErrEntityNotFound)
		}
		return nil, err
	}
	return &st, nil
}

// ListStates reads /api/states.
func (c *Client) ListStates(ctx context.Context) ([]domain.EntityState, error) {
	var states []domain.EntityState
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// CallService posts to /api/services/<domain>/<service> with the target
// entity merged into the service data.
func (c *Client) CallService(ctx context.Context, call ports.ServiceCall) error {
	data := make(map[string]any, len(call.Data)+1)
	for k, v := range call.Data {
		data[k] = v
	}
	if call.EntityID != "" {
		data["entity_id"] = call.EntityID
	}
	path := "/api/services/" + url.PathEscape(call.Domain) + "/" + url.PathEscape(call.Service)
	c.logger.Debug("Calling service", "entity_id", call.EntityID, "service", call.Domain+"."+call.Service)
	return c.do(ctx, http.MethodPost, path, data, nil)
}

// EntitiesForArea renders area_entities through /api/template.
func (c *Client) EntitiesForArea(ctx context.Context, areaID string) ([]string, error) {
	return c.templateList(ctx, "area_entities", areaID)
}

// EntitiesForLabel renders label_entities through /api/template.
func (c *Client) EntitiesForLabel(ctx context.Context, labelID string) ([]string, error) {
	return c.templateList(ctx, "label_entities", labelID)
}

func (c *Client) templateList(ctx context.Context, fn, arg string) ([]string, error) {
	quoted, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"template": fmt.Sprintf("{{ %s(%s) | tojson }}", fn, quoted)}

	var raw []byte
	if err := c.do(ctx, http.MethodPost, "/api/template", body, &raw); err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(bytes.TrimSpace(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode %s(%s): %w", fn, arg, err)
	}
	return ids, nil
}

// PublishState writes a state object with POST /api/states/<entity_id>.
func (c *Client) PublishState(ctx context.Context, st domain.EntityState) error {
	body := map[string]any{"state": st.State, "attributes": st.Attributes}
	return c.do(ctx, http.MethodPost, "/api/states/"+url.PathEscape(st.EntityID), body, nil)
}

// RemoveState deletes a state object. A missing entity is not an error.
func (c *Client) RemoveState(ctx context.Context, entityID string) error {
	err := c.do(ctx, http.MethodDelete, "/api/states/"+url.PathEscape(entityID), nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// do sends a JSON request. When out is a *[]byte the raw body is stored;
// otherwise it is decoded with numbers preserved as json.Number.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

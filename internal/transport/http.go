package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"campus-admin/config"
	"campus-admin/internal/credential"
	"campus-admin/internal/entity"
)

// Operation names used in errors and logs.
const (
	OpFetch  = "fetch"
	OpCreate = "create"
	OpUpdate = "update"
	OpRemove = "remove"
)

// envelope is the response body shape of the backend. Lists may also arrive
// as a bare JSON array.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// HTTP talks to the REST backend under {BaseURL}/api/{type}.
type HTTP struct {
	base    *url.URL
	client  *http.Client
	creds   credential.Source
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTP builds a client from cfg. creds may be nil for read-only use.
func NewHTTP(cfg config.ClientConfig, creds credential.Source, logger *zap.Logger) (*HTTP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", cfg.BaseURL)
	}

	rt := &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy url, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			rt.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerSec > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), burst)
	}

	return &HTTP{
		base:    base,
		client:  &http.Client{Transport: rt, Timeout: timeout},
		creds:   creds,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// FetchList retrieves the whole collection for t, narrowed by scope.
func (h *HTTP) FetchList(ctx context.Context, t entity.Type, scope Scope) ([]entity.Doc, error) {
	q := url.Values{}
	for k, v := range scope {
		if v != "" {
			q.Set(k, v)
		}
	}
	data, err := h.do(ctx, OpFetch, t, http.MethodGet, h.endpoint(t, "", q), nil)
	if err != nil {
		return nil, err
	}
	var docs []entity.Doc
	if len(data) == 0 || string(data) == "null" {
		return []entity.Doc{}, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, &Error{Op: OpFetch, Type: t, Err: fmt.Errorf("failed to unmarshal list: %w", err)}
	}
	return docs, nil
}

// Create posts a new entity and returns the stored document.
func (h *HTTP) Create(ctx context.Context, t entity.Type, payload entity.Doc) (entity.Doc, error) {
	data, err := h.do(ctx, OpCreate, t, http.MethodPost, h.endpoint(t, "", nil), payload)
	if err != nil {
		return nil, err
	}
	return decodeDoc(OpCreate, t, data)
}

// Update sends a partial update and returns the stored document.
func (h *HTTP) Update(ctx context.Context, t entity.Type, id string, patch entity.Doc) (entity.Doc, error) {
	data, err := h.do(ctx, OpUpdate, t, http.MethodPatch, h.endpoint(t, id, nil), patch)
	if err != nil {
		return nil, err
	}
	return decodeDoc(OpUpdate, t, data)
}

// Remove deletes the entity with the given id.
func (h *HTTP) Remove(ctx context.Context, t entity.Type, id string) error {
	_, err := h.do(ctx, OpRemove, t, http.MethodDelete, h.endpoint(t, id, nil), nil)
	return err
}

func (h *HTTP) endpoint(t entity.Type, id string, q url.Values) string {
	u := *h.base
	u.Path = strings.TrimRight(u.Path, "/") + "/api/" + string(t)
	if id != "" {
		u.Path += "/" + id
	}
	u.RawPath = ""
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (h *HTTP) do(ctx context.Context, op string, t entity.Type, method, target string, body any) (json.RawMessage, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Type: t, Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Type: t, Err: fmt.Errorf("failed to marshal request payload: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &Error{Op: op, Type: t, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.creds != nil {
		if tok, ok := h.creds.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Type: t, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Type: t, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	h.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:      op,
			Type:    t,
			Status:  resp.StatusCode,
			Message: serverMessage(raw),
			Err:     fmt.Errorf("received non-2xx status code: %d", resp.StatusCode),
		}
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &Error{Op: op, Type: t, Status: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal api response: %w", err)}
	}
	if env.Error != "" {
		return nil, &Error{Op: op, Type: t, Status: resp.StatusCode, Message: env.Error, Err: errors.New("api returned an error")}
	}
	if env.Data == nil {
		return trimmed, nil
	}
	return env.Data, nil
}

func serverMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Error)
}

func decodeDoc(op string, t entity.Type, data json.RawMessage) (entity.Doc, error) {
	if len(data) == 0 {
		return entity.Doc{}, nil
	}
	var doc entity.Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Op: op, Type: t, Err: fmt.Errorf("failed to unmarshal document: %w", err)}
	}
	if doc == nil {
		doc = entity.Doc{}
	}
	return doc, nil
}

package apiclient

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

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const userAgent = "novel-reader-cache/1.0"

// resource paths of the remote API by kind
var paths = map[string]string{
	event.KindNovel:   "/novels",
	event.KindNovels:  "/novels",
	event.KindGenres:  "/genres",
	event.KindPopular: "/novels/popular",
	event.KindUser:    "/users",
}

// StatusError is returned for non-2xx answers of the remote API.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxResponseSize caps how much of a response body is read; 0 means 16 MiB.
	MaxResponseSize int64
	HTTPClient      *http.Client
}

// Client talks to the remote catalog API. It implements ports.DataSource,
// ports.BlobSource and ports.Mutator.
type Client struct {
	base    *url.URL
	http    *http.Client
	maxBody int64
	logger  *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	maxBody := cfg.MaxResponseSize
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Client{base: base, http: hc, maxBody: maxBody, logger: logger}, nil
}

// URL resolves a path against the API base, keeping any path prefix of the base.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func (c *Client) Fetch(ctx context.Context, desc ports.ResourceDescriptor) (json.RawMessage, error) {
	path, ok := paths[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", desc.Kind)
	}
	if desc.ID != "" {
		path += "/" + url.PathEscape(desc.ID)
	}
	target := c.URL(path)
	if len(desc.Params) > 0 {
		q := url.Values{}
		for k, v := range desc.Params {
			if v != "" {
				q.Set(k, v)
			}
		}
		target += "?" + q.Encode()
	}

	body, _, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("GET %s: response is not JSON", target)
	}
	return body, nil
}

// FetchBlob downloads an image. 204 and 404 answers mean the entity has no image.
func (c *Client) FetchBlob(ctx context.Context, endpoint string) (*ports.Blob, error) {
	target := c.URL(endpoint)
	body, header, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ports.ErrNoContent
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, ports.ErrNoContent
	}
	ct := header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return &ports.Blob{Data: body, ContentType: ct}, nil
}

func (c *Client) Mutate(ctx context.Context, req ports.MutationRequest) (json.RawMessage, error) {
	path, ok := paths[req.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", req.Kind)
	}

	var method string
	switch req.Action {
	case event.ActionCreate:
		method = http.MethodPost
	case event.ActionUpdate:
		method = http.MethodPut
	case event.ActionDelete:
		method = http.MethodDelete
	default:
		return nil, fmt.Errorf("unknown mutation action %q", req.Action)
	}
	if req.Action != event.ActionCreate {
		if req.ID == "" {
			return nil, fmt.Errorf("%s %s requires an id", req.Action, req.Kind)
		}
		path += "/" + url.PathEscape(req.ID)
	}

	var payload io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Action, req.Kind, err)
		}
		payload = bytes.NewReader(b)
	}

	body, _, err := c.do(ctx, method, c.URL(path), payload)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload io.Reader) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, image/*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, nil, fmt.Errorf("%s %s: response larger than %d bytes", method, target, c.maxBody)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"url":      target,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("API request")

	if resp.StatusCode == http.StatusNoContent {
		return nil, resp.Header, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: snippet(body)}
		if resp.StatusCode == http.StatusNotFound {
			return nil, nil, fmt.Errorf("%w: %w", ports.ErrResourceNotFound, se)
		}
		return nil, nil, se
	}
	return body, resp.Header, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

var (
	_ ports.DataSource = (*Client)(nil)
	_ ports.BlobSource = (*Client)(nil)
	_ ports.Mutator    = (*Client)(nil)
)

// Package client talks to the watchdesk JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/service"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

// Client is an HTTP implementation of the backend the edit session uses.
// It keeps the session cookie set by Login. Requests carry no deadline of
// their own; they end when the caller's context does.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its cookie jar, if any, is
// kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/login", body, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) FetchTree(ctx context.Context, kind taxonomy.Kind) ([]taxonomy.NestedNode, error) {
	var nodes []taxonomy.NestedNode
	if err := c.do(ctx, http.MethodGet, "/api/trees/"+url.PathEscape(string(kind)), nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Client) CreateNode(ctx context.Context, kind taxonomy.Kind, in taxonomy.NodeInput) (taxonomy.Node, error) {
	var n taxonomy.Node
	err := c.do(ctx, http.MethodPost, "/api/trees/"+url.PathEscape(string(kind))+"/nodes", in, &n)
	return n, err
}

func (c *Client) UpdateNode(ctx context.Context, kind taxonomy.Kind, id string, patch taxonomy.NodePatch) (taxonomy.Node, error) {
	var n taxonomy.Node
	err := c.do(ctx, http.MethodPatch, nodePath(kind, id), patch, &n)
	return n, err
}

// DeleteNode removes id with its subtree and returns the removed ids.
func (c *Client) DeleteNode(ctx context.Context, kind taxonomy.Kind, id string) ([]string, error) {
	var out struct {
		Removed []string `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, nodePath(kind, id), nil, &out); err != nil {
		return nil, err
	}
	return out.Removed, nil
}

func (c *Client) PotentialParents(ctx context.Context, kind taxonomy.Kind, id string) ([]taxonomy.Node, error) {
	var nodes []taxonomy.Node
	err := c.do(ctx, http.MethodGet, nodePath(kind, id)+"/parents", nil, &nodes)
	return nodes, err
}

func (c *Client) ListSpareParts(ctx context.Context) ([]catalog.SparePart, error) {
	var parts []catalog.SparePart
	err := c.do(ctx, http.MethodGet, "/api/spare-parts", nil, &parts)
	return parts, err
}

func (c *Client) CreateSparePart(ctx context.Context, p catalog.SparePart) (catalog.SparePart, error) {
	var out catalog.SparePart
	err := c.do(ctx, http.MethodPost, "/api/spare-parts", p, &out)
	return out, err
}

func (c *Client) ListPricingRules(ctx context.Context) ([]pricing.Rule, error) {
	var rules []pricing.Rule
	err := c.do(ctx, http.MethodGet, "/api/pricing-rules", nil, &rules)
	return rules, err
}

func (c *Client) CreatePricingRule(ctx context.Context, in service.RuleInput) (pricing.Rule, error) {
	var rule pricing.Rule
	err := c.do(ctx, http.MethodPost, "/api/pricing-rules", in, &rule)
	return rule, err
}

func (c *Client) CalculateCost(ctx context.Context, sel selection.JobIssueSelection) (pricing.Breakdown, error) {
	var b pricing.Breakdown
	err := c.do(ctx, http.MethodPost, "/api/estimates", sel, &b)
	return b, err
}

func (c *Client) CreateJob(ctx context.Context, in service.JobInput) (store.Job, error) {
	var j store.Job
	err := c.do(ctx, http.MethodPost, "/api/jobs", in, &j)
	return j, err
}

func (c *Client) AcceptJob(ctx context.Context, id string) (store.Job, error) {
	var j store.Job
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/accept", nil, &j)
	return j, err
}

func (c *Client) GetJob(ctx context.Context, id string) (store.Job, error) {
	var j store.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &j)
	return j, err
}

func (c *Client) UpdateJob(ctx context.Context, id string, in service.JobInput) (store.Job, error) {
	var j store.Job
	err := c.do(ctx, http.MethodPut, "/api/jobs/"+url.PathEscape(id), in, &j)
	return j, err
}

func nodePath(kind taxonomy.Kind, id string) string {
	return "/api/trees/" + url.PathEscape(string(kind)) + "/nodes/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", method, path, decodeError(resp.StatusCode, data))
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError returns the server's envelope, or an envelope with only a code
// when the body is not one. MessageFor falls back for the latter.
func decodeError(status int, data []byte) error {
	var env apierr.Envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Code != "" {
		return &env
	}
	return &apierr.Envelope{Code: codeForStatus(status)}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apierr.CodeBadRequest
	case http.StatusUnauthorized:
		return apierr.CodeUnauthorized
	case http.StatusNotFound:
		return apierr.CodeNotFound
	case http.StatusConflict:
		return apierr.CodeConflict
	case http.StatusUnprocessableEntity:
		return apierr.CodeValidation
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return apierr.CodeBackendUnavailable
	}
	return apierr.CodeInternal
}

// IsUnauthorized reports whether err is a rejected session.
func IsUnauthorized(err error) bool {
	var env *apierr.Envelope
	return errors.As(err, &env) && env.Code == apierr.CodeUnauthorized
}

package oar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/reservoir/internal/util/retry"
)

// Client talks to the testbed API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryOpts  []retry.Option
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithRetry configures retries of transient failures.
func WithRetry(opts ...retry.Option) ClientOption {
	return func(c *Client) { c.retryOpts = opts }
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sites lists the site names.
func (c *Client) Sites(ctx context.Context) ([]string, error) {
	var sites []string
	err := c.do(ctx, "list_sites", http.MethodGet, "/sites", nil, nil, &sites)
	return sites, err
}

// Site returns the metadata of site.
func (c *Client) Site(ctx context.Context, site string) (*Site, error) {
	var s Site
	if err := c.do(ctx, "get_site", http.MethodGet, sitePath(site), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// VLAN returns a VLAN of site.
func (c *Client) VLAN(ctx context.Context, site, id string) (*VLAN, error) {
	var v VLAN
	if err := c.do(ctx, "get_vlan", http.MethodGet, sitePath(site, "vlans", id), nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetVLANMembers places node devices into a VLAN.
func (c *Client) SetVLANMembers(ctx context.Context, site, id string, members []VLANMember) error {
	return c.do(ctx, "set_vlan_members", http.MethodPut, sitePath(site, "vlans", id, "nodes"), nil, members, nil)
}

// SubmitJob submits a job to site.
func (c *Client) SubmitJob(ctx context.Context, site string, req JobRequest) (*Job, error) {
	var j Job
	if err := c.do(ctx, "submit_job", http.MethodPost, sitePath(site, "jobs"), nil, req, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Jobs lists the jobs of site named name in one of states. Empty filters
// match everything.
func (c *Client) Jobs(ctx context.Context, site, name string, states ...string) ([]Job, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if len(states) > 0 {
		q.Set("state", strings.Join(states, ","))
	}
	var jobs []Job
	err := c.do(ctx, "list_jobs", http.MethodGet, sitePath(site, "jobs"), q, nil, &jobs)
	return jobs, err
}

// Job returns one job.
func (c *Client) Job(ctx context.Context, site string, id int64) (*Job, error) {
	var j Job
	if err := c.do(ctx, "get_job", http.MethodGet, sitePath(site, "jobs", strconv.FormatInt(id, 10)), nil, nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// DeleteJob cancels a job.
func (c *Client) DeleteJob(ctx context.Context, site string, id int64) error {
	return c.do(ctx, "delete_job", http.MethodDelete, sitePath(site, "jobs", strconv.FormatInt(id, 10)), nil, nil, nil)
}

// Deploy starts imaging nodes of site.
func (c *Client) Deploy(ctx context.Context, site string, req DeploymentRequest) (*Deployment, error) {
	var d Deployment
	if err := c.do(ctx, "deploy", http.MethodPost, sitePath(site, "deployments"), nil, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Deployment returns an imaging request.
func (c *Client) Deployment(ctx context.Context, site, id string) (*Deployment, error) {
	var d Deployment
	if err := c.do(ctx, "get_deployment", http.MethodGet, sitePath(site, "deployments", id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Availability returns what is free on site between start and end.
func (c *Client) Availability(ctx context.Context, site string, start, end time.Time) (*Availability, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	var a Availability
	if err := c.do(ctx, "availability", http.MethodGet, sitePath(site, "status"), q, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func sitePath(site string, parts ...string) string {
	segs := []string{"", "sites", url.PathEscape(site)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

// do sends one request, retrying transport errors and 5xx/429 responses.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	err := retry.WithExponentialBackoff(ctx, func() error {
		return c.roundTrip(ctx, method, target, body, out)
	}, c.retryOpts...)
	recordCall(operation, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return retry.Fatal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Fatal(err)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, apiErr) != nil || (apiErr.Code == "" && apiErr.Message == "") {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if retryable(resp.StatusCode) {
			return apiErr
		}
		return retry.Fatal(apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Fatal(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

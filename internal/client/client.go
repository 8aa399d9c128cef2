package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/middleware"
)

type service struct {
	client *Client
}

type Client struct {
	apiKey    string
	baseURL   *url.URL
	client    *http.Client
	common    service
	userAgent string

	Apps *AppsService
}

type ClientOpts struct {
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
}

type ClientOpt func(o *ClientOpts)

func WithAPIKey(key string) ClientOpt {
	return func(o *ClientOpts) {
		o.APIKey = key
	}
}

func WithHTTPClient(client *http.Client) ClientOpt {
	return func(o *ClientOpts) {
		o.HTTPClient = client
	}
}

func WithUserAgent(ua string) ClientOpt {
	return func(o *ClientOpts) {
		o.UserAgent = ua
	}
}

func New(baseURL *url.URL, opts ...ClientOpt) *Client {
	var o ClientOpts
	for _, opt := range opts {
		opt(&o)
	}

	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}

	c := &Client{
		apiKey:    o.APIKey,
		baseURL:   baseURL,
		client:    o.HTTPClient,
		userAgent: o.UserAgent,
	}
	c.common.client = c

	c.Apps = (*AppsService)(&c.common)
	return c
}

// Error is a failed API call, carrying the server message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("invalid status code, got: %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Do sends req and decodes the data field of the success envelope into v.
func (c *Client) Do(ctx context.Context, req *http.Request, v any) error {
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		handler.Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		if resp.StatusCode != http.StatusOK {
			return &Error{StatusCode: resp.StatusCode}
		}
		return err
	}

	if resp.StatusCode != http.StatusOK || !envelope.Success {
		e := &Error{StatusCode: resp.StatusCode}
		if envelope.Message != nil {
			e.Message = *envelope.Message
		}
		return e
	}

	if v == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, v)
}

// NewGetRequest creates an API GET request.
func (c *Client) NewGetRequest(urlStr string) (*http.Request, error) {
	return c.NewRequest(http.MethodGet, urlStr, nil)
}

// NewPostRequest creates an API POST request.
func (c *Client) NewPostRequest(urlStr string, body interface{}) (*http.Request, error) {
	return c.NewRequest(http.MethodPost, urlStr, body)
}

// NewRequest creates an API request with a JSON body.
func (c *Client) NewRequest(method, urlStr string, body interface{}) (*http.Request, error) {
	var buf io.ReadWriter
	if body != nil {
		buf = &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		err := enc.Encode(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := c.newRequest(method, urlStr, buf)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newRequest(method, urlStr string, body io.Reader) (*http.Request, error) {
	u, err := c.baseURL.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, c.apiKey)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return req, nil
}

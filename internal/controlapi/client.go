package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"traysites/internal/site"
)

// APIError 控制接口返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("控制接口返回 %d: %s", e.StatusCode, e.Message)
}

// Client 控制接口客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient addr 形如 127.0.0.1:17321
func NewClient(addr string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{baseURL: strings.TrimRight(base, "/"), http: httpClient}
}

// List GET /api/sites
func (c *Client) List(ctx context.Context) ([]site.View, error) {
	var views []site.View
	err := c.do(ctx, http.MethodGet, "/api/sites", nil, &views)
	return views, err
}

// Add POST /api/sites
func (c *Client) Add(ctx context.Context, siteURL string) (site.View, error) {
	var view site.View
	err := c.do(ctx, http.MethodPost, "/api/sites", AddSiteRequest{URL: siteURL}, &view)
	return view, err
}

// Get GET /api/sites/:id
func (c *Client) Get(ctx context.Context, id string) (site.View, error) {
	var view site.View
	err := c.do(ctx, http.MethodGet, "/api/sites/"+url.PathEscape(id), nil, &view)
	return view, err
}

// Action POST /api/sites/:id/{init,open,stop,exit}
func (c *Client) Action(ctx context.Context, id, action string) error {
	return c.do(ctx, http.MethodPost, "/api/sites/"+url.PathEscape(id)+"/"+action, nil, nil)
}

// Delete DELETE /api/sites/:id
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sites/"+url.PathEscape(id), nil, nil)
}

// Status GET /api/status
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("连接控制接口失败（应用是否在运行？）: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

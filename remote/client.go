// Package remote is a client for the GitHub contents and device
// authorization APIs: single-file create-or-update with optimistic
// concurrency, device-flow login, and authenticated identity lookup.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the repository contents API with a bearer credential.
type Client struct {
	apiURL string
	token  string
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a contents client. apiURL is the API root (for example
// "https://api.github.com").
func NewClient(apiURL, token string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiURL: trimSlash(apiURL),
		token:  token,
		client: httpClient,
		log:    log,
	}
}

// FileInfo is the subset of file metadata the publisher cares about.
type FileInfo struct {
	SHA     string `json:"sha"`
	Path    string `json:"path"`
	HTMLURL string `json:"html_url"`
}

// PutRequest describes one create-or-update write.
type PutRequest struct {
	Owner   string
	Repo    string
	Path    string
	Message string
	Content string // plain text; encoded on the wire
	SHA     string // revision marker of the version being replaced, "" to create
}

// GetFileSHA returns the revision marker for path, or "" when the file does
// not exist. Unexpected statuses are tolerated as "unknown revision" so the
// caller can fall back to a plain create.
func (c *Client) GetFileSHA(ctx context.Context, owner, repo, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(owner, repo, path), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to read file revision: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).
			Msg("unexpected status reading file revision, will attempt a plain create")
		return "", nil
	}

	var info FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode file metadata: %w", err)
	}
	return info.SHA, nil
}

// PutFile creates or updates one file. The revision marker is included when
// known so the API can detect conflicting concurrent writes.
func (c *Client) PutFile(ctx context.Context, put PutRequest) (*FileInfo, error) {
	body := map[string]string{
		"message": put.Message,
		"content": EncodeContent(put.Content),
	}
	if put.SHA != "" {
		body["sha"] = put.SHA
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.contentsURL(put.Owner, put.Repo, put.Path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errBody struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	var result struct {
		Content FileInfo `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode write response: %w", err)
	}
	return &result.Content, nil
}

func (c *Client) contentsURL(owner, repo, path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.apiURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

// EncodeContent encodes file text as Base64 over its UTF-8 bytes, so
// non-ASCII text round-trips exactly.
func EncodeContent(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeContent reverses EncodeContent.
func DecodeContent(s string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("failed to decode content: %w", err)
	}
	return string(data), nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

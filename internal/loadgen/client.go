package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Client logs in once per user and reuses the bearer token for every probe.
type Client struct {
	baseURL  string
	password string
	http     *http.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewClient(baseURL, password string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		http:     hc,
		tokens:   map[string]string{},
	}
}

func (c *Client) Login(ctx context.Context, email string) (string, error) {
	c.mu.Lock()
	token, ok := c.tokens[email]
	c.mu.Unlock()
	if ok {
		return token, nil
	}

	body, _ := json.Marshal(map[string]string{"email": email, "password": c.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("login %s: %s", email, resp.Status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("empty token returned")
	}

	c.mu.Lock()
	c.tokens[email] = out.Token
	c.mu.Unlock()
	return out.Token, nil
}

// Probe runs one guarded access check and returns the response status.
func (c *Client) Probe(ctx context.Context, p Probe) (int, error) {
	token, err := c.Login(ctx, p.Email)
	if err != nil {
		return 0, err
	}
	path := fmt.Sprintf("%s/api/access/%s/%s", c.baseURL, url.PathEscape(p.ModuleKey), url.PathEscape(string(p.Action)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

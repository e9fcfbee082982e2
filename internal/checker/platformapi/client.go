// Package platformapi is the HTTP client for external content platform APIs:
// a client-credentials token exchange and a single-page content listing.
// Transport failures are returned as wrapped errors so callers can let the
// message bus retry; HTTP-level rejections map to the sentinel errors below.
package platformapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnauthorized signals a rejected or expired API credential.
	ErrUnauthorized = errors.New("platform api: unauthorized")
	// ErrProfileNotFound signals that the account does not exist on the
	// platform.
	ErrProfileNotFound = errors.New("platform api: profile not found")
	// ErrUnexpectedStatus signals any other non-success response.
	ErrUnexpectedStatus = errors.New("platform api: unexpected status")
)

// listPageSize is the single page requested from the listing endpoint.
// Accounts whose token-bearing item sits beyond this page will not verify.
const listPageSize = 50

// Item is one piece of content owned by a platform account.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client calls one platform's public API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authURL    string
}

// New constructs a platform API client.
func New(baseURL, authURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authURL:    authURL,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token exchanges a client id and secret for a bearer token via the
// client-credentials grant.
func (c *Client) Token(ctx context.Context, clientID, clientSecret string) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnexpectedStatus)
	}
	return body.AccessToken, nil
}

type listResponse struct {
	Items []Item `json:"items"`
}

// ListContent fetches the first page of the account's content listing.
func (c *Client) ListContent(ctx context.Context, bearer, accountID string) ([]Item, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/items?limit=%d&offset=0", c.baseURL, url.PathEscape(accountID), listPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return body.Items, nil
}

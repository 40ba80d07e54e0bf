// Package roblox talks to the public Roblox web APIs. It backs the
// storefront's account resolver, profile scanner, asset catalog, and
// ownership oracle contracts.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bloxhub/storefront/core"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20 // 1 MiB

	defaultUsersBaseURL     = "https://users.roblox.com"
	defaultInventoryBaseURL = "https://inventory.roblox.com"
	defaultGamePassBaseURL  = "https://apis.roblox.com"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	HTTPClient       HTTPDoer
	RequestTimeout   time.Duration
	UsersBaseURL     string
	InventoryBaseURL string
	GamePassBaseURL  string
}

type Client struct {
	httpClient       HTTPDoer
	requestTimeout   time.Duration
	usersBaseURL     string
	inventoryBaseURL string
	gamePassBaseURL  string
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{
		httpClient:       httpClient,
		requestTimeout:   requestTimeout,
		usersBaseURL:     baseURLOrDefault(cfg.UsersBaseURL, defaultUsersBaseURL),
		inventoryBaseURL: baseURLOrDefault(cfg.InventoryBaseURL, defaultInventoryBaseURL),
		gamePassBaseURL:  baseURLOrDefault(cfg.GamePassBaseURL, defaultGamePassBaseURL),
	}
}

func DefaultClient() *Client {
	return NewClient(Config{})
}

func baseURLOrDefault(value string, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

type usernameLookupRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

type usernameLookupResponse struct {
	Data []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"data"`
}

func (c *Client) ResolveUsername(ctx context.Context, username string) (core.ExternalAccount, error) {
	if c == nil {
		return core.ExternalAccount{}, fmt.Errorf("roblox: client is not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return core.ExternalAccount{}, fmt.Errorf("roblox: username is required")
	}

	payload, err := json.Marshal(usernameLookupRequest{
		Usernames:          []string{username},
		ExcludeBannedUsers: true,
	})
	if err != nil {
		return core.ExternalAccount{}, fmt.Errorf("roblox: encode username lookup: %w", err)
	}

	var decoded usernameLookupResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.usersBaseURL+"/v1/usernames/users", payload, &decoded)
	if err != nil {
		return core.ExternalAccount{}, err
	}
	if status != http.StatusOK {
		return core.ExternalAccount{}, fmt.Errorf("roblox: username lookup returned status %d", status)
	}
	if len(decoded.Data) == 0 {
		return core.ExternalAccount{}, fmt.Errorf("roblox: roblox user %q not found", username)
	}
	entry := decoded.Data[0]
	return core.ExternalAccount{
		RobloxUserID:   entry.ID,
		RobloxUsername: entry.Name,
		DisplayName:    entry.DisplayName,
	}, nil
}

type userDetailResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) ProfileDescription(ctx context.Context, robloxUserID int64) (string, error) {
	if c == nil {
		return "", fmt.Errorf("roblox: client is not configured")
	}
	if robloxUserID <= 0 {
		return "", fmt.Errorf("roblox: user id is required")
	}

	var decoded userDetailResponse
	url := fmt.Sprintf("%s/v1/users/%d", c.usersBaseURL, robloxUserID)
	status, err := c.doJSON(ctx, http.MethodGet, url, nil, &decoded)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("roblox: roblox user %d not found", robloxUserID)
	case status != http.StatusOK:
		return "", fmt.Errorf("roblox: user detail returned status %d", status)
	}
	return decoded.Description, nil
}

type gamePassProductInfo struct {
	Name         string `json:"Name"`
	PriceInRobux int64  `json:"PriceInRobux"`
	Creator      struct {
		Name string `json:"Name"`
	} `json:"Creator"`
}

func (c *Client) AssetInfo(ctx context.Context, assetID int64) (core.AssetInfo, error) {
	if c == nil {
		return core.AssetInfo{}, fmt.Errorf("roblox: client is not configured")
	}
	if assetID <= 0 {
		return core.AssetInfo{}, fmt.Errorf("roblox: asset id is required")
	}

	var decoded gamePassProductInfo
	url := fmt.Sprintf("%s/game-passes/v1/game-passes/%d/product-info", c.gamePassBaseURL, assetID)
	status, err := c.doJSON(ctx, http.MethodGet, url, nil, &decoded)
	if err != nil {
		return core.AssetInfo{}, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return core.AssetInfo{}, fmt.Errorf("roblox: gamepass %d not found", assetID)
	case status != http.StatusOK:
		return core.AssetInfo{}, fmt.Errorf("roblox: gamepass product info returned status %d", status)
	}
	return core.AssetInfo{
		AssetID:    assetID,
		Name:       decoded.Name,
		PriceRobux: decoded.PriceInRobux,
		SellerName: decoded.Creator.Name,
	}, nil
}

type inventoryItemsResponse struct {
	Data []struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// CheckOwnership reports whether the user's inventory holds the
// gamepass. Transport failures and unexpected statuses yield
// OwnershipUnknown with an error so callers retry instead of treating
// an outage as a definite answer.
func (c *Client) CheckOwnership(ctx context.Context, robloxUserID int64, assetID int64) (core.OwnershipStatus, error) {
	if c == nil {
		return core.OwnershipUnknown, fmt.Errorf("roblox: client is not configured")
	}
	if robloxUserID <= 0 || assetID <= 0 {
		return core.OwnershipUnknown, fmt.Errorf("roblox: user id and asset id are required")
	}

	var decoded inventoryItemsResponse
	url := fmt.Sprintf("%s/v1/users/%d/items/GamePass/%d", c.inventoryBaseURL, robloxUserID, assetID)
	status, err := c.doJSON(ctx, http.MethodGet, url, nil, &decoded)
	if err != nil {
		return core.OwnershipUnknown, err
	}
	switch status {
	case http.StatusOK:
		if len(decoded.Data) > 0 {
			return core.OwnershipOwned, nil
		}
		return core.OwnershipNotOwned, nil
	case http.StatusForbidden:
		return core.OwnershipUnknown, fmt.Errorf("roblox: inventory is private for user %d", robloxUserID)
	default:
		return core.OwnershipUnknown, fmt.Errorf("roblox: inventory check returned status %d", status)
	}
}

type canViewInventoryResponse struct {
	CanView bool `json:"canView"`
}

// InventoryInspectable reports whether the user's inventory is publicly
// viewable. Link confirmation requires it; a hidden inventory would
// blind every later ownership check.
func (c *Client) InventoryInspectable(ctx context.Context, robloxUserID int64) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("roblox: client is not configured")
	}
	if robloxUserID <= 0 {
		return false, fmt.Errorf("roblox: user id is required")
	}

	var decoded canViewInventoryResponse
	url := fmt.Sprintf("%s/v1/users/%d/can-view-inventory", c.inventoryBaseURL, robloxUserID)
	status, err := c.doJSON(ctx, http.MethodGet, url, nil, &decoded)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("roblox: can-view-inventory returned status %d", status)
	}
	return decoded.CanView, nil
}

func (c *Client) doJSON(ctx context.Context, method string, url string, body []byte, out any) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
	}
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("roblox: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("roblox: request failed: %w", err)
	}
	defer res.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if readErr != nil {
		return res.StatusCode, fmt.Errorf("roblox: read response: %w", readErr)
	}
	if int64(len(payload)) > maxResponseBytes {
		return res.StatusCode, fmt.Errorf("roblox: response exceeds %d bytes", maxResponseBytes)
	}
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.Unmarshal(payload, out); err != nil {
			return res.StatusCode, fmt.Errorf("roblox: decode response: %w", err)
		}
	}
	return res.StatusCode, nil
}

var (
	_ core.AccountResolver = (*Client)(nil)
	_ core.ProfileScanner  = (*Client)(nil)
	_ core.AssetCatalog    = (*Client)(nil)
	_ core.OwnershipOracle = (*Client)(nil)
)

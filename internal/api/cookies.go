// ABOUTME: Persistence of backend cookies across process restarts
// ABOUTME: Saves the jar's cookies for the base URL in local storage and restores them at startup

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/bank-assistant/internal/localstore"
)

// CookieRecordKey is the storage key holding persisted cookies.
const CookieRecordKey = "cookies"

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RestoreCookies loads persisted cookies into the jar.
// It is a no-op without cookie storage or when nothing was saved.
func (c *Client) RestoreCookies(ctx context.Context) error {
	if c.cookies == nil {
		return nil
	}

	data, err := c.cookies.GetItem(ctx, CookieRecordKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		c.logger.Warn("ignoring malformed cookie record", "error", err)
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		if s.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	c.jar.SetCookies(c.baseURL, cookies)
	c.logger.Debug("restored cookies", "count", len(cookies))
	return nil
}

// persistCookies writes the jar's current cookies for the backend to storage.
// Failures are logged; they never fail the request that triggered them.
func (c *Client) persistCookies(ctx context.Context) {
	if c.cookies == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	jarCookies := c.jar.Cookies(c.baseURL)
	if len(jarCookies) == 0 {
		if err := c.cookies.RemoveItem(ctx, CookieRecordKey); err != nil {
			c.logger.Warn("clearing persisted cookies failed", "error", err)
		}
		return
	}

	stored := make([]storedCookie, len(jarCookies))
	for i, ck := range jarCookies {
		stored[i] = storedCookie{Name: ck.Name, Value: ck.Value}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		c.logger.Warn("encoding cookies failed", "error", err)
		return
	}
	if err := c.cookies.SetItem(ctx, CookieRecordKey, data); err != nil {
		c.logger.Warn("persisting cookies failed", "error", err)
	}
}

// ForgetCookies expires every jar cookie for the backend and removes the
// persisted record. The removal ignores cancellation of ctx.
func (c *Client) ForgetCookies(ctx context.Context) error {
	var expired []*http.Cookie
	for _, ck := range c.jar.Cookies(c.baseURL) {
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
		if p := c.baseURL.Path; p != "" && p != "/" {
			expired = append(expired, &http.Cookie{Name: ck.Name, Path: p, MaxAge: -1})
		}
	}
	if len(expired) > 0 {
		c.jar.SetCookies(c.baseURL, expired)
	}

	return c.removeCookieRecord(ctx)
}

func (c *Client) removeCookieRecord(ctx context.Context) error {
	if c.cookies == nil {
		return nil
	}
	if err := c.cookies.RemoveItem(context.WithoutCancel(ctx), CookieRecordKey); err != nil {
		return fmt.Errorf("removing persisted cookies: %w", err)
	}
	return nil
}

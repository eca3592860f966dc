// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "jwt"

// CookiePolicy builds session cookies for a deployment.
type CookiePolicy struct {
	// Production selects SameSite=None with Secure. Otherwise Lax without Secure.
	Production bool
	// Domain, when set, scopes the cookie to that domain.
	Domain string
	// MaxAge is the cookie lifetime. Zero means SessionTokenExpiry.
	MaxAge time.Duration
}

// SessionCookie returns the cookie that delivers token to the browser.
func (p CookiePolicy) SessionCookie(token string) *http.Cookie {
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = SessionTokenExpiry
	}
	c := p.base()
	c.Value = token
	c.MaxAge = int(maxAge / time.Second)
	return c
}

// ClearedSessionCookie returns a cookie that makes the browser drop the
// session. It keeps every scoping attribute of SessionCookie, since browsers
// only replace a cookie whose name, path and domain match.
func (p CookiePolicy) ClearedSessionCookie() *http.Cookie {
	c := p.base()
	// net/http writes Max-Age=0 for negative values; zero would omit it.
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	return c
}

func (p CookiePolicy) base() *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if p.Production {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}

package handlers

import (
	"net/http"
	"time"
)

const (
	// RefreshCookieName is the cookie carrying the refresh token
	RefreshCookieName = "jid"
	// RefreshCookiePath scopes the cookie to the refresh endpoint
	RefreshCookiePath = "/refresh_token"
)

// CookieConfig controls refresh cookie attributes
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

func setRefreshCookie(w http.ResponseWriter, cfg CookieConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		Expires:  time.Now().Add(cfg.TTL),
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package auth

import (
	"net/http"
	"time"
)

// Cookies writes and clears the session cookie.
type Cookies struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Set stores token in an HttpOnly, SameSite=Strict cookie.
func (c Cookies) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(c.TTL / time.Second),
	})
}

// Clear tells the client to drop the session cookie.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

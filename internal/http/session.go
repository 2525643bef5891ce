package http

import (
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "authToken"

// CookiePolicy fija los atributos de la cookie de sesión.
type CookiePolicy struct {
	MaxAge time.Duration
	Secure bool
}

// ExtractToken busca el token primero en la cookie de sesión y luego en el header
// Authorization: Bearer. La cookie siempre gana. Devuelve "" si no hay token.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// SetSessionCookie adjunta el token como cookie HttpOnly con SameSite=Lax.
func SetSessionCookie(w http.ResponseWriter, policy CookiePolicy, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(policy.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie indica al cliente que descarte la cookie de sesión.
func ClearSessionCookie(w http.ResponseWriter, policy CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

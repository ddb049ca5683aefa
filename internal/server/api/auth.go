package api

import (
	"net/http"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/services"
)

// requireSession resolves the session cookie. No cookie yields
// ErrorUnauthorized; a bad or expired token ErrInvalidToken/ErrTokenExpired.
func (a *API) requireSession(r *http.Request) (services.Identity, error) {
	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return services.Identity{}, common.ErrorUnauthorized
	}
	return a.users.Verify(c.Value)
}

// requireAPIKey resolves "Authorization: Bearer <key>".
func (a *API) requireAPIKey(r *http.Request) (services.Identity, error) {
	return a.apiKeys.Authenticate(r.Context(), bearerToken(r.Header.Get("Authorization")))
}

// session runs requireSession and writes the failure response itself.
func (a *API) session(w http.ResponseWriter, r *http.Request) (services.Identity, bool) {
	id, err := a.requireSession(r)
	if err != nil {
		a.fail(w, r, err)
		return services.Identity{}, false
	}
	return id, true
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		a.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		a.log.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeMessage(w, code, msg)
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

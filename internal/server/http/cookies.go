package http

import (
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"
)

func (h *Handler) tokenCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, pair services.TokenPair) {
	http.SetCookie(w, h.tokenCookie(common.AccessTokenCookieName, pair.AccessToken))
	http.SetCookie(w, h.tokenCookie(common.RefreshTokenCookieName, pair.RefreshToken))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := h.tokenCookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

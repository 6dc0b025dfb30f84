// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	// CSRFCookieName holds the token. Scripts can read it to echo it back.
	CSRFCookieName = "certforge_csrf"

	// CSRFHeaderName carries the echoed token on unsafe requests.
	CSRFHeaderName = "X-CSRF-Token"

	// CSRFQueryParam is accepted when the header is absent. The body is never
	// read so upload limits stay with the handlers.
	CSRFQueryParam = "csrf_token"

	csrfTokenBytes = 32

	csrfKey contextKey = "csrf"
)

// NewCSRF returns double-submit cookie protection. Requests without a token
// cookie get a fresh one; POST, PUT, PATCH and DELETE must echo it.
func NewCSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := csrfCookie(w, r, secure)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfKey, token))

			if !safeMethod(r.Method) && !echoed(r, token) {
				writeError(w, http.StatusForbidden, "CSRF token mismatch")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromCtx returns the token of the current request, or "".
func CSRFTokenFromCtx(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey).(string)
	return token
}

// csrfCookie returns the request's token, issuing a new cookie if needed.
func csrfCookie(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func echoed(r *http.Request, token string) bool {
	got := r.Header.Get(CSRFHeaderName)
	if got == "" {
		got = r.URL.Query().Get(CSRFQueryParam)
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(token), []byte(got)) == 1
}

// Package auth extracts and checks the shared secret that voice-gateway
// webhooks and operators present.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader is the header the voice gateway sends its server secret in.
const SecretHeader = "X-Vapi-Secret"

// Token returns the caller's secret from SecretHeader, then a bearer token,
// then (when allowQuery is set) the token query parameter. Browsers cannot
// set headers on websocket upgrades, hence the query form.
func Token(r *http.Request, allowQuery bool) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get(SecretHeader)); v != "" {
		return v, true
	}
	if v, ok := ParseBearer(r); ok {
		return v, true
	}
	if allowQuery {
		if v := strings.TrimSpace(r.URL.Query().Get("token")); v != "" {
			return v, true
		}
	}
	return "", false
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	return token, token != ""
}

// Valid compares in constant time.
func Valid(secret, token string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}

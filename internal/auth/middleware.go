package auth

import "net/http"

// Authenticator verifies presented admin credentials against the
// configured key set: bcrypt hashes of keys issued with `konditional
// keys generate`, plus an optional legacy plaintext admin key for
// backward compatibility.
type Authenticator struct {
	legacyAdminKey string
	keyHashes      []string
}

// NewAuthenticator creates an Authenticator. Either argument may be
// empty; a request verifies if any configured credential matches.
func NewAuthenticator(legacyAdminKey string, keyHashes []string) *Authenticator {
	return &Authenticator{legacyAdminKey: legacyAdminKey, keyHashes: keyHashes}
}

// Verify reports whether key matches a configured credential.
func (a *Authenticator) Verify(key string) bool {
	if key == "" {
		return false
	}
	if a.legacyAdminKey != "" && VerifyAPIKeyConstantTime(key, a.legacyAdminKey) {
		return true
	}
	for _, hash := range a.keyHashes {
		if VerifyAPIKey(key, hash) {
			return true
		}
	}
	return false
}

// RequireAdmin guards control-plane mutations. The key is accepted as
// a bearer token or an X-API-Key header.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := ExtractBearerToken(r.Header.Get("Authorization"))
		if got == "" {
			got = r.Header.Get("X-API-Key")
		}
		if !a.Verify(got) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"missing or invalid API key","code":"UNAUTHORIZED"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

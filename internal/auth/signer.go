// Package auth builds request signatures and headers for the exchange's
// private REST surface. Requests are signed with HMAC-SHA256 over
// "timestamp + METHOD + path + body" keyed by the API secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Signer holds exchange API credentials. The zero value is an unconfigured
// signer: Configured() reports false and callers must fall back to the
// public endpoints or mock data. Construction never fails.
type Signer struct {
	baseURL   string
	accountID string
	key       string
	secret    string

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewSigner creates a Signer for the given exchange base URL and credentials.
// Empty credentials are allowed and simply leave the signer unconfigured.
func NewSigner(baseURL, accountID, key, secret string) *Signer {
	return &Signer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		key:       key,
		secret:    secret,
		now:       time.Now,
	}
}

// Configured reports whether account id, key and secret are all present.
func (s *Signer) Configured() bool {
	return s.accountID != "" && s.key != "" && s.secret != ""
}

// BuildURL joins the exchange base URL with an endpoint path.
func (s *Signer) BuildURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return s.baseURL + endpoint
}

// GenerateHeaders produces the authentication header set for a private
// request. body may be empty for GET requests.
func (s *Signer) GenerateHeaders(method, path, body string) map[string]string {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	return map[string]string{
		"orderly-account-id": s.accountID,
		"orderly-key":        s.key,
		"orderly-signature":  s.sign(ts, method, path, body),
		"orderly-timestamp":  ts,
		"Content-Type":       "application/json",
	}
}

// sign computes base64url(HMAC-SHA256(secret, ts + METHOD + path + body)).
func (s *Signer) sign(ts, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(ts + strings.ToUpper(method) + path + body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Package oauth implements OAuth 1.0a request signing with HMAC-SHA256
// for NetSuite Token-Based Authentication.
package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials holds the long-lived NetSuite TBA credentials.
// The struct is read-only after construction and safe to share
// across concurrent signing operations.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
	AccountID      string
}

// SignedRequest is the result of signing one HTTP call. Signatures are
// single-use: the embedded timestamp/nonce pair must be unique per call,
// otherwise NetSuite rejects concurrent requests as replayed logins.
type SignedRequest struct {
	Method        string
	URL           string
	Timestamp     string
	Nonce         string
	Signature     string
	Authorization string
}

// Signer computes OAuth 1.0a Authorization headers. It is stateless
// apart from the credentials and safe for concurrent use.
type Signer struct {
	creds Credentials

	// Hooks for deterministic tests.
	now   func() time.Time
	nonce func(timestamp string) string
}

// NewSigner creates a signer for the given credentials.
func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds: creds,
		now:   time.Now,
		nonce: newNonce,
	}
}

// newNonce derives a 32-character nonce from the timestamp and fresh
// UUID entropy. Collisions across concurrent calls are statistically
// negligible rather than impossible; NetSuite tolerates this as long
// as timestamp+nonce pairs differ.
func newNonce(timestamp string) string {
	sum := sha256.Sum256([]byte(timestamp + uuid.NewString()))
	return hex.EncodeToString(sum[:])[:32]
}

// Sign produces a signed request for the given method, URL and full
// parameter set (business query parameters; OAuth parameters are added
// here). The URL must not carry a query string or fragment.
func (s *Signer) Sign(method, rawURL string, params url.Values) (*SignedRequest, error) {
	baseURL, err := canonicalURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("canonical url: %w", err)
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	nonce := s.nonce(timestamp)

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_token":            s.creds.TokenID,
		"oauth_signature_method": "HMAC-SHA256",
		"oauth_timestamp":        timestamp,
		"oauth_nonce":            nonce,
		"oauth_version":          "1.0",
	}

	baseString := signatureBaseString(method, baseURL, oauthParams, params)

	signingKey := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	oauthParams["oauth_signature"] = signature

	return &SignedRequest{
		Method:        method,
		URL:           baseURL,
		Timestamp:     timestamp,
		Nonce:         nonce,
		Signature:     signature,
		Authorization: authorizationHeader(s.creds.AccountID, oauthParams),
	}, nil
}

// AuthorizationHeader is a convenience wrapper around Sign that returns
// only the header value.
func (s *Signer) AuthorizationHeader(method, rawURL string, params url.Values) (string, error) {
	signed, err := s.Sign(method, rawURL, params)
	if err != nil {
		return "", err
	}
	return signed.Authorization, nil
}

// signatureBaseString builds METHOD&enc(url)&enc(sortedParams) over the
// merged OAuth and business parameter set.
func signatureBaseString(method, baseURL string, oauthParams map[string]string, params url.Values) string {
	type pair struct{ k, v string }

	pairs := make([]pair, 0, len(oauthParams)+len(params))
	for k, v := range oauthParams {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	paramString := strings.Join(parts, "&")

	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)
}

// authorizationHeader renders the OAuth header with realm first and the
// remaining parameters in sorted order, each percent-encoded and quoted.
func authorizationHeader(realm string, oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, fmt.Sprintf("realm=%q", realm))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, percentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// canonicalURL strips query string and fragment, keeping scheme, host
// and path for the signature base string.
func canonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// percentEncode implements RFC 3986 encoding: only unreserved characters
// pass through unescaped. url.QueryEscape is not suitable here because it
// encodes spaces as '+'.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

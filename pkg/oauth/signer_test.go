package oauth

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func testCredentials() Credentials {
	return Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		TokenID:        "tid",
		TokenSecret:    "ts",
		AccountID:      "123456_SB1",
	}
}

func TestSign_DifferentNonceProducesDifferentSignature(t *testing.T) {
	signer := NewSigner(testCredentials())

	params := url.Values{}
	params.Set("searchId", "customsearch_gl")
	params.Set("page", "3")

	first, err := signer.Sign("GET", "https://acct.restlets.api.netsuite.com/app/site/hosting/restlet.nl", params)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	second, err := signer.Sign("GET", "https://acct.restlets.api.netsuite.com/app/site/hosting/restlet.nl", params)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if first.Nonce == second.Nonce {
		t.Error("consecutive signings produced identical nonces")
	}
	if first.Signature == second.Signature {
		t.Errorf("identical business params with different nonces must produce different signatures, both were %q", first.Signature)
	}
}

func TestSign_DeterministicWithFixedClockAndNonce(t *testing.T) {
	signer := NewSigner(testCredentials())
	signer.now = func() time.Time { return time.Unix(1700000000, 0) }
	signer.nonce = func(string) string { return "fixednonce" }

	params := url.Values{"searchId": {"customsearch_gl"}}

	first, err := signer.Sign("GET", "https://example.com/restlet.nl", params)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	second, err := signer.Sign("GET", "https://example.com/restlet.nl", params)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if first.Signature != second.Signature {
		t.Errorf("fixed clock and nonce should sign deterministically: %q != %q", first.Signature, second.Signature)
	}
}

func TestSign_HeaderShape(t *testing.T) {
	signer := NewSigner(testCredentials())

	header, err := signer.AuthorizationHeader("GET", "https://example.com/restlet.nl", url.Values{"page": {"0"}})
	if err != nil {
		t.Fatalf("AuthorizationHeader failed: %v", err)
	}

	if !strings.HasPrefix(header, `OAuth realm="123456_SB1"`) {
		t.Errorf("header must start with OAuth realm, got %q", header)
	}

	for _, want := range []string{
		`oauth_consumer_key="ck"`,
		`oauth_token="tid"`,
		`oauth_signature_method="HMAC-SHA256"`,
		`oauth_version="1.0"`,
		`oauth_signature=`,
		`oauth_timestamp=`,
		`oauth_nonce=`,
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %s: %q", want, header)
		}
	}

	// OAuth parameters after the realm must appear in sorted order.
	order := []string{
		"oauth_consumer_key", "oauth_nonce", "oauth_signature",
		"oauth_signature_method", "oauth_timestamp", "oauth_token", "oauth_version",
	}
	last := -1
	for _, k := range order {
		idx := strings.Index(header, k+"=")
		if idx < 0 {
			t.Fatalf("header missing parameter %s", k)
		}
		if idx < last {
			t.Errorf("parameter %s out of sorted order in %q", k, header)
		}
		last = idx
	}
}

func TestSign_QueryStringStrippedFromBaseURL(t *testing.T) {
	signer := NewSigner(testCredentials())

	signed, err := signer.Sign("GET", "https://example.com/restlet.nl?script=123&deploy=1", nil)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if strings.Contains(signed.URL, "?") {
		t.Errorf("canonical URL must not carry a query string: %q", signed.URL)
	}
}

func TestSign_InvalidURL(t *testing.T) {
	signer := NewSigner(testCredentials())
	if _, err := signer.Sign("GET", "not-a-url", nil); err == nil {
		t.Error("expected error for URL without scheme/host")
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcABC123", "abcABC123"},
		{"-._~", "-._~"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"a&b=c", "a%26b%3Dc"},
		{"Jan 2024,Feb 2024", "Jan%202024%2CFeb%202024"},
		{"/path/", "%2Fpath%2F"},
	}

	for _, tt := range tests {
		if got := percentEncode(tt.in); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignatureBaseString_SortedParams(t *testing.T) {
	oauthParams := map[string]string{
		"oauth_nonce":   "n",
		"oauth_version": "1.0",
	}
	params := url.Values{
		"zeta":  {"1"},
		"alpha": {"2"},
	}

	base := signatureBaseString("get", "https://example.com/r", oauthParams, params)

	if !strings.HasPrefix(base, "GET&") {
		t.Errorf("method must be uppercased: %q", base)
	}
	alphaIdx := strings.Index(base, "alpha")
	zetaIdx := strings.Index(base, "zeta")
	if alphaIdx < 0 || zetaIdx < 0 || alphaIdx > zetaIdx {
		t.Errorf("parameters not sorted in base string: %q", base)
	}
}

package provision

import "testing"

func TestExtractCodePrefersLargeFontBlock(t *testing.T) {
	body := `<p>Your order 111111 is ready.</p>
<div style="font-size: 32px; font-weight: bold;">482913</div>`
	code, ok := extractCode(body)
	if !ok || code != "482913" {
		t.Fatalf("extractCode = (%q, %v), want the large-font code", code, ok)
	}
}

func TestExtractCodeFallsBackToAnySixDigits(t *testing.T) {
	code, ok := extractCode("Your verification code is 123456, valid for 10 minutes.")
	if !ok || code != "123456" {
		t.Fatalf("extractCode = (%q, %v)", code, ok)
	}
}

func TestExtractCodeRejectsBodiesWithoutCode(t *testing.T) {
	for _, body := range []string{"", "no digits here", "short 12345 run", "7 digits 1234567 run"} {
		if code, ok := extractCode(body); ok {
			t.Fatalf("extractCode(%q) = %q, want no match", body, code)
		}
	}
}

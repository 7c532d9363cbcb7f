package ids

import (
	"bytes"
	"strings"
	"testing"
)

func TestParsePaymentIdRejectsWrongLength(t *testing.T) {
	cases := []string{"", "abc", strings.Repeat("a", 15), strings.Repeat("a", 17)}
	for _, c := range cases {
		if _, err := ParsePaymentId(c); err != ErrInvalidPid {
			t.Fatalf("ParsePaymentId(%q): expected ErrInvalidPid, got %v", c, err)
		}
	}
}

func TestParsePaymentIdRejectsNonHex(t *testing.T) {
	if _, err := ParsePaymentId("zzzzzzzzzzzzzzzz"); err != ErrInvalidPid {
		t.Fatalf("expected ErrInvalidPid, got %v", err)
	}
}

func TestParsePaymentIdCaseInsensitive(t *testing.T) {
	lower := "0123456789abcdef"
	upper := strings.ToUpper(lower)
	p1, err := ParsePaymentId(lower)
	if err != nil {
		t.Fatalf("parse lower: %v", err)
	}
	p2, err := ParsePaymentId(upper)
	if err != nil {
		t.Fatalf("parse upper: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("case-insensitive parse mismatch: %x vs %x", p1, p2)
	}
	if p1.String() != lower {
		t.Fatalf("String() = %q, want %q", p1.String(), lower)
	}
}

func TestParsePaymentIdDoesNotTrim(t *testing.T) {
	if _, err := ParsePaymentId(" 0123456789abcdef"); err != ErrInvalidPid {
		t.Fatalf("expected untrimmed whitespace to be rejected, got %v", err)
	}
}

func TestGeneratePaymentIdUsesInjectedSource(t *testing.T) {
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	pid, err := GeneratePaymentId(src)
	if err != nil {
		t.Fatalf("GeneratePaymentId: %v", err)
	}
	want := PaymentId{1, 2, 3, 4, 5, 6, 7, 8}
	if pid != want {
		t.Fatalf("pid = %x, want %x", pid, want)
	}
}

func TestGeneratePaymentIdDefaultsToCryptoRand(t *testing.T) {
	a, err := GeneratePaymentId(nil)
	if err != nil {
		t.Fatalf("GeneratePaymentId: %v", err)
	}
	b, err := GeneratePaymentId(nil)
	if err != nil {
		t.Fatalf("GeneratePaymentId: %v", err)
	}
	if a == b {
		t.Fatalf("two generated PIDs collided: %x", a)
	}
}

func TestPaymentIdFromBytesRoundTrip(t *testing.T) {
	pid, err := ParsePaymentId("0123456789abcdef")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	back, err := PaymentIdFromBytes(pid.Bytes())
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if back != pid {
		t.Fatalf("round trip mismatch")
	}
	if _, err := PaymentIdFromBytes([]byte{1, 2, 3}); err != ErrInvalidPid {
		t.Fatalf("expected ErrInvalidPid for short slice")
	}
}

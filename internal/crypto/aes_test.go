package crypto

import (
	"errors"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sealed, err := s.Seal("pass-uuid-1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) || strings.Contains(sealed, "pass-uuid-1") {
		t.Fatalf("Seal() = %q, want opaque prefixed value", sealed)
	}
	got, err := s.Open(sealed)
	if err != nil || got != "pass-uuid-1" {
		t.Errorf("Open() = %q, %v", got, err)
	}
}

func TestOpenPlainValuePassesThrough(t *testing.T) {
	s, _ := NewSealer(testKey)
	got, err := s.Open("plain")
	if err != nil || got != "plain" {
		t.Errorf("Open(plain) = %q, %v", got, err)
	}
}

func TestOpenWrongKey(t *testing.T) {
	a, _ := NewSealer(testKey)
	b, _ := NewSealer(strings.Repeat("k", 32))
	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Errorf("Open with wrong key error = %v, want ErrOpen", err)
	}
}

func TestNilSealer(t *testing.T) {
	s, err := NewSealer("")
	if err != nil || s != nil {
		t.Fatalf("NewSealer(\"\") = %v, %v", s, err)
	}
	v, _ := s.Seal("x")
	if v != "x" {
		t.Errorf("nil Seal() = %q", v)
	}
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"raw", testKey, false},
		{"hex", strings.Repeat("ab", 32), false},
		{"base64", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=", false},
		{"short", "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := DeriveKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveKey error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(k) != 32 {
				t.Errorf("key length = %d", len(k))
			}
		})
	}
}

func TestResolveKeyGeneratesOnce(t *testing.T) {
	keyring.MockInit()

	first, err := ResolveKey("owner-a")
	if err != nil {
		t.Fatalf("ResolveKey: %v", err)
	}
	if _, err := DeriveKey(first); err != nil {
		t.Fatalf("generated key unusable: %v", err)
	}
	second, err := ResolveKey("owner-a")
	if err != nil || second != first {
		t.Errorf("second ResolveKey = %q, %v; want %q", second, err, first)
	}

	if err := ForgetKey("owner-a"); err != nil {
		t.Fatalf("ForgetKey: %v", err)
	}
	if err := ForgetKey("owner-a"); err != nil {
		t.Errorf("ForgetKey on missing entry: %v", err)
	}
}

package config

import "testing"

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "en"},
		{"en", "en"},
		{" EN ", "en"},
		{"ru_RU", "ru"},
		{"pt-BR", "pt"},
		{"!!", "en"},
	}
	for _, tt := range tests {
		if got := NormalizeLocale(tt.in); got != tt.want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

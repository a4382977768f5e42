package id

import (
	"testing"
)

func TestIsPlatformIdentity(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "digits", id: "U0123456789", want: true},
		{name: "mixed alphanumerics", id: "U04ABCDEF12", want: true},
		{name: "all letters", id: "UABCDEFGHIJ", want: true},
		{name: "too short", id: "U012345678", want: false},
		{name: "too long", id: "U01234567890", want: false},
		{name: "lowercase body", id: "U04abcdef12", want: false},
		{name: "lowercase prefix", id: "u0123456789", want: false},
		{name: "wrong prefix", id: "W0123456789", want: false},
		{name: "surrounding space", id: " U0123456789", want: false},
		{name: "uuid", id: "8f14e45f-ceea-467f-a8e4-0b1c2d3e4f50", want: false},
		{name: "empty", id: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlatformIdentity(tt.id); got != tt.want {
				t.Errorf("IsPlatformIdentity(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify("U0123456789"); got != KindPlatform {
		t.Errorf("expected platform, got %s", got)
	}
	if got := Classify("prov-42"); got != KindProvisional {
		t.Errorf("expected provisional, got %s", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada@Example.com", "ada@example.com"},
		{"ADA@EXAMPLE.COM", "ada@example.com"},
		{" ada@example.com", " ada@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

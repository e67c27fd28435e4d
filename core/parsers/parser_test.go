package parsers

import (
	"strings"
	"testing"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

func TestIsDirectLink(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"VLESS link", "vless://uuid@server:443", true},
		{"VMess link", "vmess://base64", true},
		{"Trojan link", "trojan://password@server:443", true},
		{"Shadowsocks link", "ss://method:password@server:443", true},
		{"HTTP URL", "https://example.com/subscription", false},
		{"Empty string", "", false},
		{"Whitespace VLESS", "  vless://uuid@server:443  ", true},
		{"Uppercase scheme", "TROJAN://password@server:443", true},
		{"Invalid scheme", "http://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDirectLink(tt.input); got != tt.expected {
				t.Errorf("IsDirectLink(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("routes by scheme", func(t *testing.T) {
		rec, err := registry.Dispatch("  trojan://pw@server.example:443  ")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if rec.Protocol != record.ProtocolTrojan {
			t.Errorf("Expected trojan, got %q", rec.Protocol)
		}
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := registry.Dispatch("hysteria2://pw@server.example:443")
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "no parser recognizes this URI scheme") {
			t.Errorf("Unexpected message: %q", err.Error())
		}
	})

	t.Run("oversized URI", func(t *testing.T) {
		_, err := registry.Dispatch("vless://" + strings.Repeat("a", MaxURILength))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("Expected length error, got %v", err)
		}
	})

	t.Run("fixed scheme order", func(t *testing.T) {
		schemes := registry.Schemes()
		expected := []string{"ss", "vmess", "vless", "trojan"}
		if len(schemes) != len(expected) {
			t.Fatalf("Expected %d parsers, got %d", len(expected), len(schemes))
		}
		for i, s := range expected {
			if schemes[i] != s {
				t.Errorf("Expected scheme %q at position %d, got %q", s, i, schemes[i])
			}
		}
	})
}

package record

import "testing"

func TestIdentityForURI(t *testing.T) {
	t.Run("stable across calls", func(t *testing.T) {
		a := IdentityForURI("trojan://pw@server.example:443#Home")
		b := IdentityForURI("trojan://pw@server.example:443#Home")
		if a != b {
			t.Errorf("Expected identical IDs, got %q and %q", a, b)
		}
	})

	t.Run("whitespace and scheme case do not change the ID", func(t *testing.T) {
		a := IdentityForURI("trojan://pw@server.example:443")
		b := IdentityForURI("  TROJAN://pw@server.example:443  ")
		if a != b {
			t.Errorf("Expected normalized URIs to share an ID, got %q and %q", a, b)
		}
	})

	t.Run("textually distinct URIs never collide", func(t *testing.T) {
		a := IdentityForURI("trojan://pw@server.example:443")
		b := IdentityForURI("trojan://pw@server.example:443#Home")
		if a == b {
			t.Error("Expected distinct IDs for distinct URI text")
		}
	})
}

func TestNormalizeURI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases scheme only", "VLESS://UUID@Host:443", "vless://UUID@Host:443"},
		{"trims whitespace", "  ss://abc  ", "ss://abc"},
		{"no scheme passes through", "not a uri", "not a uri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURI(tt.input); got != tt.expected {
				t.Errorf("NormalizeURI(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	for _, port := range []int{1, 443, 65535} {
		if err := ValidatePort(port); err != nil {
			t.Errorf("Expected port %d to be valid, got %v", port, err)
		}
	}
	for _, port := range []int{0, -1, 65536, 100000} {
		if err := ValidatePort(port); err == nil {
			t.Errorf("Expected port %d to be rejected", port)
		}
	}
}

func TestSubscriptionParseResult_Predicates(t *testing.T) {
	entry := ImportedConfigEntry{ID: "x"}
	lineErr := LineError{LineNumber: 1, RawURI: "bad", Message: "broken"}

	tests := []struct {
		name                   string
		result                 SubscriptionParseResult
		full, partial, failure bool
	}{
		{"all parsed", SubscriptionParseResult{Configs: []ImportedConfigEntry{entry}}, true, false, false},
		{"mixed", SubscriptionParseResult{Configs: []ImportedConfigEntry{entry}, Errors: []LineError{lineErr}}, false, true, false},
		{"all failed", SubscriptionParseResult{Errors: []LineError{lineErr}}, false, false, true},
		{"empty", SubscriptionParseResult{}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsFullSuccess(); got != tt.full {
				t.Errorf("IsFullSuccess() = %v, expected %v", got, tt.full)
			}
			if got := tt.result.IsPartialSuccess(); got != tt.partial {
				t.Errorf("IsPartialSuccess() = %v, expected %v", got, tt.partial)
			}
			if got := tt.result.IsFailure(); got != tt.failure {
				t.Errorf("IsFailure() = %v, expected %v", got, tt.failure)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	withRemark := &ConfigRecord{Protocol: ProtocolVMess, ServerAddress: "h", Remark: "My Node"}
	if withRemark.DisplayName() != "My Node" {
		t.Errorf("Expected remark as display name, got %q", withRemark.DisplayName())
	}
	without := &ConfigRecord{Protocol: ProtocolVMess, ServerAddress: "h"}
	if without.DisplayName() != "vmess h" {
		t.Errorf("Expected generated label, got %q", without.DisplayName())
	}
}

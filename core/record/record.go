// Package record defines the uniform configuration record produced by the
// protocol parsers, plus the import metadata wrappers consumed by the
// subscription pipeline and the UI/storage layers.
package record

import (
	"fmt"
	"strings"
)

// Protocol identifies the proxy protocol a ConfigRecord describes.
type Protocol string

const (
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolVMess       Protocol = "vmess"
	ProtocolVLESS       Protocol = "vless"
	ProtocolTrojan      Protocol = "trojan"
)

// Source indicates how a configuration entered the application.
type Source string

const (
	SourceManualURI       Source = "manual_uri"
	SourceSubscriptionURL Source = "subscription_url"
	SourceQRCode          Source = "qr_code"
	SourceClipboard       Source = "clipboard"
)

// ConfigRecord is the canonical parsed proxy configuration. It is constructed
// exactly once by a protocol parser on successful parse and is treated as
// immutable afterwards.
//
// Identity is protocol-overloaded on purpose so the record stays uniform:
// it carries the cipher method for Shadowsocks (with the password in
// SecondaryIdentity), the user UUID for VMess/VLESS, and the password for
// Trojan.
//
// The optional maps are nil when the corresponding settings are absent from
// the URI. Downstream consumers branch on nil to decide whether to apply TLS
// at all, so a nil map and an empty map are not interchangeable.
type ConfigRecord struct {
	Protocol          Protocol       `json:"protocol"`
	ServerAddress     string         `json:"server_address"`
	Port              int            `json:"port"`
	Identity          string         `json:"identity"`
	SecondaryIdentity string         `json:"secondary_identity,omitempty"`
	Remark            string         `json:"remark,omitempty"`
	TLSSettings       map[string]any `json:"tls_settings,omitempty"`
	TransportSettings map[string]any `json:"transport_settings,omitempty"`
	AdditionalParams  map[string]any `json:"additional_params,omitempty"`
}

// DisplayName returns the remark when present, otherwise a generated
// "{protocol} {server}" label.
func (r *ConfigRecord) DisplayName() string {
	if r.Remark != "" {
		return r.Remark
	}
	return fmt.Sprintf("%s %s", r.Protocol, r.ServerAddress)
}

// ImportedConfigEntry wraps a ConfigRecord with import metadata.
type ImportedConfigEntry struct {
	ID              string        `json:"id"`
	Source          Source        `json:"source"`
	SubscriptionURL string        `json:"subscription_url,omitempty"`
	Name            string        `json:"name"`
	Record          *ConfigRecord `json:"record"`
}

// LineError describes one subscription line that failed to parse.
type LineError struct {
	LineNumber int    `json:"line_number"`
	RawURI     string `json:"raw_uri"`
	Message    string `json:"message"`
}

// SubscriptionParseResult is the aggregate outcome of one subscription fetch.
// Configs and Errors both preserve original line order.
type SubscriptionParseResult struct {
	Configs []ImportedConfigEntry `json:"configs"`
	Errors  []LineError           `json:"errors"`
}

// IsFullSuccess reports that every line parsed and at least one config was
// produced.
func (r *SubscriptionParseResult) IsFullSuccess() bool {
	return len(r.Errors) == 0 && len(r.Configs) > 0
}

// IsPartialSuccess reports that some lines parsed and some failed.
func (r *SubscriptionParseResult) IsPartialSuccess() bool {
	return len(r.Configs) > 0 && len(r.Errors) > 0
}

// IsFailure reports that nothing could be imported.
func (r *SubscriptionParseResult) IsFailure() bool {
	return len(r.Configs) == 0
}

// ValidatePort checks the 1-65535 range shared by all parsers. Out-of-range
// ports are always a failure, never clamped or defaulted.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range (must be 1-65535)", port)
	}
	return nil
}

// NormalizeURI trims surrounding whitespace and lower-cases the scheme part
// of a proxy URI. Identity generation and scheme matching both rely on this
// so the two stay consistent.
func NormalizeURI(raw string) string {
	trimmed := strings.TrimSpace(raw)
	idx := strings.Index(trimmed, "://")
	if idx <= 0 {
		return trimmed
	}
	return strings.ToLower(trimmed[:idx]) + trimmed[idx:]
}

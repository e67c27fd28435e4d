// Package parsers provides parsing logic for the supported proxy URI formats.
// It covers Shadowsocks, VMess, VLESS and Trojan links, each behind a common
// two-method contract, with a fixed-order registry dispatching raw URIs to
// the parser that owns their scheme.
package parsers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// Parser is the contract every protocol parser implements. Recognizes is a
// cheap scheme check only; Parse performs the full validation and never
// returns a partially populated record.
type Parser interface {
	Name() string
	Recognizes(uri string) bool
	Parse(uri string) (*record.ConfigRecord, error)
}

// MaxURILength bounds a single proxy URI. Anything longer is rejected before
// dispatch.
const MaxURILength = 8192 // 8 KB

// ErrUnrecognizedScheme is returned by Dispatch when no registered parser
// recognizes the URI. Its text is user-facing.
var ErrUnrecognizedScheme = errors.New("no parser recognizes this URI scheme")

// Registry holds the ordered set of protocol parsers. Schemes are disjoint,
// so order does not affect correctness, but it is fixed for determinism.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds a registry over an explicit parser list.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// DefaultRegistry returns a registry with all supported protocol parsers in
// their canonical order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewShadowsocksParser(),
		NewVMessParser(),
		NewVLESSParser(),
		NewTrojanParser(),
	)
}

// Dispatch trims the URI and routes it to the first parser that recognizes
// its scheme.
func (r *Registry) Dispatch(uri string) (*record.ConfigRecord, error) {
	trimmed := strings.TrimSpace(uri)
	if len(trimmed) > MaxURILength {
		return nil, fmt.Errorf("URI length (%d) exceeds maximum (%d)", len(trimmed), MaxURILength)
	}
	for _, p := range r.parsers {
		if p.Recognizes(trimmed) {
			return p.Parse(trimmed)
		}
	}
	return nil, ErrUnrecognizedScheme
}

// Schemes lists the scheme tags of all registered parsers, in registry order.
func (r *Registry) Schemes() []string {
	out := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		out = append(out, p.Name())
	}
	return out
}

// IsDirectLink checks if the input string is a direct proxy link
// (vless://, vmess://, etc.) as opposed to a subscription URL.
func IsDirectLink(input string) bool {
	trimmed := strings.TrimSpace(input)
	return hasScheme(trimmed, "ss") ||
		hasScheme(trimmed, "vmess") ||
		hasScheme(trimmed, "vless") ||
		hasScheme(trimmed, "trojan")
}

// hasScheme reports whether uri starts with "scheme://", case-insensitively.
func hasScheme(uri, scheme string) bool {
	prefix := scheme + "://"
	return len(uri) >= len(prefix) && strings.EqualFold(uri[:len(prefix)], prefix)
}

// schemePayload strips "scheme://" from the front of uri. The caller must
// have checked hasScheme first.
func schemePayload(uri, scheme string) string {
	return uri[len(scheme)+len("://"):]
}

package parsers

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// streamURIParser implements the shared "credential@host:port?query#remark"
// wire form used by both VLESS and Trojan. The two differ only in scheme and
// in what the credential carries (a UUID vs a password), so a single
// implementation is parameterized over both.
type streamURIParser struct {
	scheme          string
	protocol        record.Protocol
	credentialLabel string
}

// NewVLESSParser returns the parser for vless:// links.
func NewVLESSParser() Parser {
	return streamURIParser{scheme: "vless", protocol: record.ProtocolVLESS, credentialLabel: "UUID"}
}

// NewTrojanParser returns the parser for trojan:// links.
func NewTrojanParser() Parser {
	return streamURIParser{scheme: "trojan", protocol: record.ProtocolTrojan, credentialLabel: "password"}
}

func (p streamURIParser) Name() string { return p.scheme }

func (p streamURIParser) Recognizes(uri string) bool {
	return hasScheme(strings.TrimSpace(uri), p.scheme)
}

// Query keys promoted out of the generic parameter bag. Everything
// recognized but unclassified lands in AdditionalParams untouched.
var (
	streamTLSKeys       = map[string]bool{"security": true, "sni": true, "fingerprint": true, "alpn": true, "allowInsecure": true}
	streamTransportKeys = map[string]bool{"type": true, "path": true, "host": true, "headerType": true}
)

// validTransportTypes is the allow-list for the transport "type" parameter.
// Anything else is rejected outright rather than handed to a connection
// engine that cannot act on it.
var validTransportTypes = map[string]bool{"tcp": true, "ws": true, "grpc": true, "h2": true}

func (p streamURIParser) Parse(uri string) (*record.ConfigRecord, error) {
	trimmed := strings.TrimSpace(uri)
	if !hasScheme(trimmed, p.scheme) {
		return nil, fmt.Errorf("not a %s link (expected %s:// scheme)", p.scheme, p.scheme)
	}
	payload := schemePayload(trimmed, p.scheme)
	if payload == "" {
		return nil, fmt.Errorf("%s link has no payload after the scheme", p.scheme)
	}

	payload, fragment := cutFragment(payload)
	remark := decodeRemark(fragment)

	var rawQuery string
	if idx := strings.Index(payload, "?"); idx >= 0 {
		rawQuery = payload[idx+1:]
		payload = payload[:idx]
	}

	// The credential may itself contain an encoded '@', so the authority
	// split uses the last occurrence.
	atIdx := strings.LastIndex(payload, "@")
	if atIdx < 0 {
		return nil, fmt.Errorf("%s link is missing '@' between %s and host", p.scheme, p.credentialLabel)
	}
	credential := payload[:atIdx]
	if decoded, err := url.QueryUnescape(credential); err == nil {
		credential = decoded
	}
	if credential == "" {
		return nil, fmt.Errorf("%s link has an empty %s", p.scheme, p.credentialLabel)
	}

	// Many generators emit a bare path slash before the query or fragment
	// ("...:443/?security=tls"); tolerate it like the Shadowsocks path does.
	host, port, err := splitHostPort(strings.TrimSuffix(payload[atIdx+1:], "/"))
	if err != nil {
		return nil, err
	}

	rec := &record.ConfigRecord{
		Protocol:      p.protocol,
		ServerAddress: host,
		Port:          port,
		Identity:      credential,
		Remark:        remark,
	}
	if rawQuery != "" {
		if err := p.classifyQuery(rawQuery, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// classifyQuery sorts query parameters into the TLS, transport and
// additional buckets, validating the values that have a closed domain.
func (p streamURIParser) classifyQuery(rawQuery string, rec *record.ConfigRecord) error {
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("%s link has an invalid query string", p.scheme)
	}

	// Map iteration order is random; walk the keys sorted so the same bad
	// query always surfaces the same error.
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := query.Get(key)
		switch {
		case key == "allowInsecure":
			insecure, err := parseBoolParam(value)
			if err != nil {
				return fmt.Errorf("invalid allowInsecure value %q (expected 1/true/0/false)", value)
			}
			setSetting(&rec.TLSSettings, key, insecure)
		case key == "type":
			if !validTransportTypes[value] {
				return fmt.Errorf("unsupported transport type %q", value)
			}
			setSetting(&rec.TransportSettings, key, value)
		case streamTLSKeys[key]:
			setSetting(&rec.TLSSettings, key, value)
		case streamTransportKeys[key]:
			setSetting(&rec.TransportSettings, key, value)
		default:
			setSetting(&rec.AdditionalParams, key, value)
		}
	}
	return nil
}

// parseBoolParam accepts the string boolean forms used in the wild.
func parseBoolParam(value string) (bool, error) {
	switch value {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", value)
	}
}

// setSetting lazily allocates the destination map so that an absent settings
// group stays nil rather than becoming an empty map.
func setSetting(m *map[string]any, key string, value any) {
	if *m == nil {
		*m = make(map[string]any)
	}
	(*m)[key] = value
}

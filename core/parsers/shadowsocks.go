package parsers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// shadowsocksParser handles ss:// links in all three historical layouts:
//
//	SIP002:   ss://base64(method:password)@host:port[/?query][#remark]
//	standard: ss://base64(method:password)@host:port[#remark]
//	legacy:   ss://base64(method:password@host:port)[#remark]
//
// Detection follows the conventional heuristic: if the raw payload contains
// an '@' outside the base64 part, the link is SIP002/standard; otherwise the
// whole payload is decoded as legacy.
type shadowsocksParser struct{}

// NewShadowsocksParser returns the parser for ss:// links.
func NewShadowsocksParser() Parser { return shadowsocksParser{} }

func (shadowsocksParser) Name() string { return "ss" }

func (shadowsocksParser) Recognizes(uri string) bool {
	return hasScheme(strings.TrimSpace(uri), "ss")
}

// validShadowsocksMethods is the fixed allow-list of supported AEAD ciphers.
// Unknown methods are a hard failure: an engine handed an unsupported method
// would fail opaquely much later, so the link is rejected up front.
var validShadowsocksMethods = map[string]bool{
	// 2022 edition
	"2022-blake3-aes-128-gcm":       true,
	"2022-blake3-aes-256-gcm":       true,
	"2022-blake3-chacha20-poly1305": true,
	// AEAD ciphers
	"none":                    true,
	"aes-128-gcm":             true,
	"aes-192-gcm":             true,
	"aes-256-gcm":             true,
	"chacha20-ietf-poly1305":  true,
	"xchacha20-ietf-poly1305": true,
}

func (p shadowsocksParser) Parse(uri string) (*record.ConfigRecord, error) {
	trimmed := strings.TrimSpace(uri)
	if !hasScheme(trimmed, "ss") {
		return nil, fmt.Errorf("not a Shadowsocks link (expected ss:// scheme)")
	}
	payload := schemePayload(trimmed, "ss")
	if payload == "" {
		return nil, fmt.Errorf("Shadowsocks link has no payload after the scheme")
	}

	payload, fragment := cutFragment(payload)
	remark := decodeRemark(fragment)

	// SIP002/standard carry a literal '@' between the base64 user info and
	// the authority; legacy hides it inside the base64 payload.
	if strings.Contains(payload, "@") {
		return p.parseSIP002(payload, remark)
	}
	return p.parseLegacy(payload, remark)
}

// parseSIP002 handles both SIP002 and the query-less standard form.
func (p shadowsocksParser) parseSIP002(payload, remark string) (*record.ConfigRecord, error) {
	atIdx := strings.Index(payload, "@")
	encodedUserinfo := payload[:atIdx]
	rest := payload[atIdx+1:]

	if encodedUserinfo == "" {
		return nil, fmt.Errorf("Shadowsocks link has empty user info before '@'")
	}
	decoded, err := decodeBase64WithPadding(encodedUserinfo)
	if err != nil {
		return nil, fmt.Errorf("Shadowsocks user info is not valid base64")
	}
	method, password, err := splitCredentials(string(decoded))
	if err != nil {
		return nil, err
	}

	// Optional query segment: host:port[/?key=value...]
	var rawQuery string
	if idx := strings.Index(rest, "?"); idx >= 0 {
		rawQuery = rest[idx+1:]
		rest = strings.TrimSuffix(rest[:idx], "/")
	}

	host, port, err := splitHostPort(rest)
	if err != nil {
		return nil, err
	}

	var additional map[string]any
	if rawQuery != "" {
		query, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, fmt.Errorf("Shadowsocks link has an invalid query string")
		}
		for key := range query {
			if additional == nil {
				additional = make(map[string]any)
			}
			// Plugin options are passed through verbatim; this core does
			// not interpret plugin semantics.
			additional[key] = query.Get(key)
		}
	}

	return &record.ConfigRecord{
		Protocol:          record.ProtocolShadowsocks,
		ServerAddress:     host,
		Port:              port,
		Identity:          method,
		SecondaryIdentity: password,
		Remark:            remark,
		AdditionalParams:  additional,
	}, nil
}

// parseLegacy handles ss://base64(method:password@host:port). The split on
// '@' uses the last occurrence because legacy passwords may themselves
// contain '@'.
func (p shadowsocksParser) parseLegacy(payload, remark string) (*record.ConfigRecord, error) {
	decoded, err := decodeBase64WithPadding(payload)
	if err != nil {
		return nil, fmt.Errorf("Shadowsocks link payload is not valid base64")
	}
	decodedStr := string(decoded)

	atIdx := strings.LastIndex(decodedStr, "@")
	if atIdx < 0 {
		return nil, fmt.Errorf("legacy Shadowsocks payload is missing '@' between credentials and host")
	}
	method, password, err := splitCredentials(decodedStr[:atIdx])
	if err != nil {
		return nil, err
	}
	host, port, err := splitHostPort(decodedStr[atIdx+1:])
	if err != nil {
		return nil, err
	}

	return &record.ConfigRecord{
		Protocol:          record.ProtocolShadowsocks,
		ServerAddress:     host,
		Port:              port,
		Identity:          method,
		SecondaryIdentity: password,
		Remark:            remark,
	}, nil
}

// splitCredentials separates "method:password" on the first colon only,
// since passwords may legally contain colons, and validates the method
// against the cipher allow-list.
func splitCredentials(userinfo string) (method, password string, err error) {
	colonIdx := strings.Index(userinfo, ":")
	if colonIdx < 0 {
		return "", "", fmt.Errorf("Shadowsocks credentials are missing the ':' between method and password")
	}
	method = userinfo[:colonIdx]
	password = userinfo[colonIdx+1:]
	if method == "" {
		return "", "", fmt.Errorf("Shadowsocks encryption method is empty")
	}
	if password == "" {
		return "", "", fmt.Errorf("Shadowsocks password is empty")
	}
	if !validShadowsocksMethods[method] {
		return "", "", fmt.Errorf("Unsupported encryption method: %s", method)
	}
	return method, password, nil
}

package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// vmessParser handles vmess:// links, whose payload is a base64-encoded JSON
// object rather than a URI authority. Key names vary across client
// implementations, so each logical field resolves an ordered alias list,
// first present-and-non-empty wins.
type vmessParser struct{}

// NewVMessParser returns the parser for vmess:// links.
func NewVMessParser() Parser { return vmessParser{} }

func (vmessParser) Name() string { return "vmess" }

func (vmessParser) Recognizes(uri string) bool {
	return hasScheme(strings.TrimSpace(uri), "vmess")
}

// Alias lists per logical field, colocated so the resolution order is
// visible next to the field it serves. The primary key comes first.
var (
	vmessAddressKeys = []string{"add", "address", "server"}
	vmessUserIDKeys  = []string{"id", "uuid"}
	vmessRemarkKeys  = []string{"ps", "remark"}
	vmessNetworkKeys = []string{"net", "network"}
	vmessTLSKeys     = []string{"tls", "security"}
	vmessAlterIDKeys = []string{"aid", "alterId"}
)

// networks that carry a host header and/or path in their transport settings
var vmessHostNetworks = map[string]bool{"ws": true, "h2": true, "http": true}
var vmessPathNetworks = map[string]bool{"ws": true, "h2": true, "http": true, "grpc": true}

func (p vmessParser) Parse(uri string) (*record.ConfigRecord, error) {
	trimmed := strings.TrimSpace(uri)
	if !hasScheme(trimmed, "vmess") {
		return nil, fmt.Errorf("not a VMess link (expected vmess:// scheme)")
	}
	payload := schemePayload(trimmed, "vmess")
	if payload == "" {
		return nil, fmt.Errorf("VMess link has no payload after the scheme")
	}

	decoded, err := decodeBase64WithPadding(payload)
	if err != nil {
		return nil, fmt.Errorf("VMess payload is not valid base64")
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("VMess payload decoded to empty content")
	}

	// Providers routinely emit sloppy JSON (comments, trailing commas);
	// normalize through jsonc before strict decoding.
	normalized := jsonc.ToJSON(decoded)

	var fields map[string]any
	if err := json.Unmarshal(normalized, &fields); err != nil {
		var probe any
		if json.Unmarshal(normalized, &probe) == nil {
			return nil, fmt.Errorf("VMess payload must be an object, got %s", jsonKind(probe))
		}
		return nil, fmt.Errorf("VMess payload is not valid JSON")
	}

	address := vmessString(fields, vmessAddressKeys...)
	if address == "" {
		return nil, fmt.Errorf("VMess config is missing the server address")
	}
	port, ok := vmessInt(fields, "port")
	if !ok {
		return nil, fmt.Errorf("VMess port is missing or not numeric")
	}
	if err := record.ValidatePort(port); err != nil {
		return nil, err
	}
	userID := vmessString(fields, vmessUserIDKeys...)
	if userID == "" {
		return nil, fmt.Errorf("VMess config is missing the user id")
	}

	network := vmessString(fields, vmessNetworkKeys...)
	if network == "" {
		network = "tcp"
	}
	headerType := vmessString(fields, "type")
	if headerType == "" {
		headerType = "none"
	}

	transport := map[string]any{
		"network":    network,
		"headerType": headerType,
	}
	if vmessHostNetworks[network] {
		if host := vmessString(fields, "host"); host != "" {
			transport["host"] = host
		}
	}
	if vmessPathNetworks[network] {
		if path := vmessString(fields, "path"); path != "" {
			transport["path"] = path
		}
	}

	// TLS settings are emitted only when the link enables them; a nil map
	// tells downstream consumers not to apply TLS at all.
	var tls map[string]any
	if security := vmessString(fields, vmessTLSKeys...); security != "" {
		tls = map[string]any{"security": security}
		if sni := vmessString(fields, "sni"); sni != "" {
			tls["sni"] = sni
		}
	}

	alterID := 0
	if raw, present := vmessRawAlterID(fields); present {
		aid, ok := vmessIntValue(raw)
		if !ok {
			return nil, fmt.Errorf("VMess alterId is not numeric")
		}
		alterID = aid
	}
	additional := map[string]any{"alterId": alterID}
	if version := vmessString(fields, "v"); version != "" {
		additional["v"] = version
	}

	return &record.ConfigRecord{
		Protocol:          record.ProtocolVMess,
		ServerAddress:     address,
		Port:              port,
		Identity:          userID,
		Remark:            vmessString(fields, vmessRemarkKeys...),
		TLSSettings:       tls,
		TransportSettings: transport,
		AdditionalParams:  additional,
	}, nil
}

// jsonKind names a decoded JSON value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return "an unexpected value"
	}
}

// vmessString resolves the first present, non-empty string value among the
// candidate keys.
func vmessString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := fields[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// vmessInt resolves a numeric field that may arrive as a JSON number or a
// numeric string.
func vmessInt(fields map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		raw, present := fields[key]
		if !present {
			continue
		}
		return vmessIntValue(raw)
	}
	return 0, false
}

func vmessIntValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		// JSON numbers arrive as float64; a fractional value is not a
		// valid port or alterId and must not be truncated into one.
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// vmessRawAlterID finds the alterId value under any of its aliases,
// ignoring empty strings so they fall back to the default of 0.
func vmessRawAlterID(fields map[string]any) (any, bool) {
	for _, key := range vmessAlterIDKeys {
		raw, present := fields[key]
		if !present {
			continue
		}
		if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return raw, true
	}
	return nil, false
}

package parsers

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Beep206/CyberVPN-sub008/core/record"
)

// splitHostPort parses the "host:port" part of a proxy URI. IPv6 literals
// must be bracketed; the brackets are stripped from the returned host. Every
// rejection names the component that failed so the message can be shown to
// the importing user as-is.
func splitHostPort(s string) (host string, port int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("server address is missing")
	}

	var portStr string
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", 0, fmt.Errorf("IPv6 host %q is missing its closing bracket", s)
		}
		host = s[1:end]
		rest := s[end+1:]
		if host == "" {
			return "", 0, fmt.Errorf("IPv6 host is empty")
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("port is missing after IPv6 host %q", host)
		}
		portStr = rest[1:]
	} else {
		idx := strings.LastIndex(s, ":")
		if idx < 0 {
			return "", 0, fmt.Errorf("port is missing in %q", s)
		}
		host = s[:idx]
		portStr = s[idx+1:]
		if host == "" {
			return "", 0, fmt.Errorf("server address is missing")
		}
	}

	if portStr == "" {
		return "", 0, fmt.Errorf("port is missing for host %q", host)
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil {
		return "", 0, fmt.Errorf("port %q is not numeric", portStr)
	}
	if err := record.ValidatePort(port); err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// decodeBase64WithPadding decodes s in the URL-safe or standard alphabet,
// tolerating absent '=' padding.
func decodeBase64WithPadding(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	decoded, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(s)
	}
	return decoded, err
}

// decodeRemark percent-decodes a URI fragment into a display remark. A
// fragment that is not valid percent-encoding is kept verbatim rather than
// dropped, so the user still sees something recognizable.
func decodeRemark(fragment string) string {
	if fragment == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(fragment); err == nil {
		return decoded
	}
	return fragment
}

// cutFragment splits the "#remark" suffix off a URI payload.
func cutFragment(payload string) (rest, fragment string) {
	if idx := strings.Index(payload, "#"); idx >= 0 {
		return payload[:idx], payload[idx+1:]
	}
	return payload, ""
}

package subscription

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Clash YAML is the third body format seen in the wild besides base64 and
// plain URI lists. Each supported proxy entry is converted to its URI form
// so the rest of the pipeline stays format-agnostic.

type clashConfig struct {
	Proxies []clashProxy `yaml:"proxies"`
}

type clashProxy struct {
	Name           string          `yaml:"name"`
	Type           string          `yaml:"type"`
	Server         string          `yaml:"server"`
	Port           int             `yaml:"port"`
	UUID           string          `yaml:"uuid"`
	Password       string          `yaml:"password"`
	Cipher         string          `yaml:"cipher"`
	AlterID        int             `yaml:"alterId"`
	Network        string          `yaml:"network"`
	TLS            bool            `yaml:"tls"`
	SkipCertVerify bool            `yaml:"skip-cert-verify"`
	ServerName     string          `yaml:"servername"`
	SNI            string          `yaml:"sni"`
	WSOpts         *clashWSOptions `yaml:"ws-opts"`
}

type clashWSOptions struct {
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
}

// isClashDocument detects a Clash configuration body.
func isClashDocument(text string) bool {
	return strings.Contains(text, "proxies:")
}

// clashToLines parses a Clash YAML body and converts each supported proxy to
// a URI line. The line number is the proxy's 1-based position in the
// proxies array. Unsupported proxy types are skipped, not fatal.
func clashToLines(text string) ([]Line, error) {
	var cfg clashConfig
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, fmt.Errorf("body contains 'proxies:' but is not valid Clash YAML: %w", err)
	}
	if len(cfg.Proxies) == 0 {
		return nil, errors.New("Clash document contains no proxies")
	}

	lines := make([]Line, 0, len(cfg.Proxies))
	for i, proxy := range cfg.Proxies {
		uri := clashProxyToURI(proxy)
		if uri == "" {
			logrus.Debugf("subscription: skipping unsupported Clash proxy type %q (%s)", proxy.Type, proxy.Name)
			continue
		}
		lines = append(lines, Line{Number: i + 1, Raw: uri})
	}
	if len(lines) == 0 {
		return nil, errors.New("Clash document contains no supported proxy types")
	}
	return lines, nil
}

func clashProxyToURI(p clashProxy) string {
	switch p.Type {
	case "vmess":
		return buildVMessURI(p)
	case "vless":
		return buildVLESSURI(p)
	case "trojan":
		return buildTrojanURI(p)
	case "ss":
		return buildShadowsocksURI(p)
	default:
		return ""
	}
}

// buildVMessURI re-encodes a Clash vmess entry as the base64 JSON link form.
func buildVMessURI(p clashProxy) string {
	payload := map[string]any{
		"v":    "2",
		"ps":   p.Name,
		"add":  p.Server,
		"port": p.Port,
		"id":   p.UUID,
		"aid":  p.AlterID,
		"net":  defaultString(p.Network, "tcp"),
		"type": "none",
	}
	if p.WSOpts != nil {
		if p.WSOpts.Path != "" {
			payload["path"] = p.WSOpts.Path
		}
		if host := p.WSOpts.Headers["Host"]; host != "" {
			payload["host"] = host
		}
	}
	if p.TLS {
		payload["tls"] = "tls"
		if sni := firstNonEmpty(p.SNI, p.ServerName); sni != "" {
			payload["sni"] = sni
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

func buildVLESSURI(p clashProxy) string {
	params := url.Values{}
	if p.TLS {
		params.Set("security", "tls")
		if sni := firstNonEmpty(p.SNI, p.ServerName); sni != "" {
			params.Set("sni", sni)
		}
	}
	if p.SkipCertVerify {
		params.Set("allowInsecure", "1")
	}
	appendTransportParams(params, p)
	return fmt.Sprintf("vless://%s@%s%s#%s",
		url.QueryEscape(p.UUID), hostPort(p), encodeQuery(params), url.QueryEscape(p.Name))
}

func buildTrojanURI(p clashProxy) string {
	params := url.Values{}
	if sni := firstNonEmpty(p.SNI, p.ServerName); sni != "" {
		params.Set("sni", sni)
	}
	if p.SkipCertVerify {
		params.Set("allowInsecure", "1")
	}
	appendTransportParams(params, p)
	return fmt.Sprintf("trojan://%s@%s%s#%s",
		url.QueryEscape(p.Password), hostPort(p), encodeQuery(params), url.QueryEscape(p.Name))
}

func buildShadowsocksURI(p clashProxy) string {
	userInfo := base64.RawURLEncoding.EncodeToString([]byte(p.Cipher + ":" + p.Password))
	return fmt.Sprintf("ss://%s@%s#%s", userInfo, hostPort(p), url.QueryEscape(p.Name))
}

func appendTransportParams(params url.Values, p clashProxy) {
	network := defaultString(p.Network, "tcp")
	// Clash spells the HTTP/2 transport "http"; the URI form calls it "h2".
	if network == "http" {
		network = "h2"
	}
	params.Set("type", network)
	if p.WSOpts != nil {
		if p.WSOpts.Path != "" {
			params.Set("path", p.WSOpts.Path)
		}
		if host := p.WSOpts.Headers["Host"]; host != "" {
			params.Set("host", host)
		}
	}
}

// hostPort renders the authority, bracketing IPv6 literals.
func hostPort(p clashProxy) string {
	host := p.Server
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, p.Port)
}

func encodeQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

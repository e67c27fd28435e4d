// Package subscription implements the fetch, decode and aggregation pipeline
// that turns a subscription URL into a batch of parsed configuration
// entries. Subscription bodies arrive as base64 documents, plain URI lists
// or Clash YAML; one malformed line never aborts the rest of the batch.
package subscription

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Line is one candidate URI from a decoded subscription body. Number is the
// 1-based position in the decoded document, kept for error reporting.
type Line struct {
	Number int
	Raw    string
}

// uriSchemes are the prefixes that mark a body as a plain-text URI list.
// Scheme sniffing runs before any base64 attempt so that a plain body which
// happens to also be decodable base64 is still treated as plain text.
var uriSchemes = []string{"ss://", "vmess://", "vless://", "trojan://"}

// DecodeBody turns a raw subscription response body into candidate URI
// lines. Blank lines are dropped; surviving lines keep their original
// 1-based numbers.
func DecodeBody(body []byte) ([]Line, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, errors.New("empty response body")
	}

	firstLine := text
	if idx := strings.IndexAny(firstLine, "\r\n"); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if containsURIScheme(firstLine) {
		return splitLines(text), nil
	}

	if isClashDocument(text) {
		return clashToLines(text)
	}

	if looksLikeHTML(text) {
		return nil, errors.New("response body looks like an HTML page, not a subscription (the URL may require authentication)")
	}

	decoded, err := decodeBase64Document(text)
	if err != nil {
		return nil, errors.New("content is not valid base64 and does not look like a list of configuration URIs")
	}
	if !utf8.Valid(decoded) {
		return nil, errors.New("decoded subscription content is not valid UTF-8")
	}

	decodedText := strings.TrimSpace(string(decoded))
	if decodedText == "" {
		return nil, errors.New("decoded subscription content is empty")
	}
	lines := splitLines(decodedText)
	logrus.Debugf("subscription: decoded base64 body into %d line(s)", len(lines))
	return lines, nil
}

func containsURIScheme(line string) bool {
	lower := strings.ToLower(line)
	for _, scheme := range uriSchemes {
		if strings.Contains(lower, scheme) {
			return true
		}
	}
	return false
}

// splitLines splits on any newline style, dropping empty and
// whitespace-only lines while preserving the original line numbers.
func splitLines(text string) []Line {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]Line, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l == "" {
			continue
		}
		lines = append(lines, Line{Number: i + 1, Raw: l})
	}
	return lines
}

// decodeBase64Document decodes a whole subscription body. Both the standard
// and URL-safe alphabets are accepted, with or without padding; as a last
// resort the URL-safe characters are normalized to the standard alphabet and
// padding is restored.
func decodeBase64Document(text string) ([]byte, error) {
	stripped := stripAllWhitespace(text)

	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(stripped)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}

	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(stripped, "="))
	if rem := len(normalized) % 4; rem == 2 || rem == 3 {
		normalized += strings.Repeat("=", 4-rem)
	}
	if decoded, err := base64.StdEncoding.DecodeString(normalized); err == nil {
		return decoded, nil
	}
	return nil, lastErr
}

func stripAllWhitespace(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, value)
}

// looksLikeHTML detects login or error pages returned instead of a
// subscription document.
func looksLikeHTML(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return true
	}
	// Some providers return an HTML login page without a doctype.
	return strings.Contains(lower, "<head") && strings.Contains(lower, "<body")
}

// Utilities for importing browser request headers from a "Copy as cURL" command.
package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

// skippedHeaders are never replayed; the HTTP client computes them itself.
var skippedHeaders = map[string]bool{
	"content-length":  true,
	"accept-encoding": true,
	"host":            true,
	"connection":      true,
}

// BrowserHeaders holds the headers and cookie copied from a browser request to Anghami.
type BrowserHeaders struct {
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers"`
	Cookie  string            `json:"cookie,omitempty"`
}

// ParseCurlFile reads a file containing a cURL command and extracts its headers.
func ParseCurlFile(path string) (*BrowserHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts the URL, headers (-H/--header) and cookie (-b/--cookie or a Cookie header).
//
// An explicit -b cookie wins over a Cookie header.
func ParseCurlCommand(cmd string) (*BrowserHeaders, error) {
	args := splitShellWords(strings.ReplaceAll(cmd, "\\\n", " "))

	out := &BrowserHeaders{Headers: make(map[string]string)}
	var headerCookie string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-H", "--header":
			if i+1 >= len(args) {
				continue
			}
			i++
			key, value, ok := strings.Cut(args[i], ":")
			if !ok {
				continue
			}
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			lower := strings.ToLower(key)
			switch {
			case lower == "cookie":
				headerCookie = value
			case skippedHeaders[lower]:
			default:
				out.Headers[key] = value
			}
		case "-b", "--cookie":
			if i+1 < len(args) {
				i++
				out.Cookie = args[i]
			}
		default:
			if out.URL == "" && (strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")) {
				out.URL = arg
			}
		}
	}

	if out.Cookie == "" {
		out.Cookie = headerCookie
	}

	if len(out.Headers) == 0 && out.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return out, nil
}

// Apply sets the imported headers and cookie on req without overriding headers already present.
func (b *BrowserHeaders) Apply(req *http.Request) {
	if b == nil {
		return
	}
	for k, v := range b.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if b.Cookie != "" && req.Header.Get("Cookie") == "" {
		req.Header.Set("Cookie", b.Cookie)
	}
}

// String renders the headers as sorted "Key: Value" lines with the cookie value masked.
func (b *BrowserHeaders) String() string {
	keys := make([]string, 0, len(b.Headers))
	for k := range b.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, b.Headers[k]))
	}
	if b.Cookie != "" {
		lines = append(lines, "cookie: "+MaskSecret(b.Cookie))
	}
	return strings.Join(lines, "\n")
}

// SaveHeaders atomically writes headers as JSON to path with owner-only permissions.
func SaveHeaders(path string, b *BrowserHeaders) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write headers file: %w", err)
	}
	return nil
}

// LoadHeaders reads a headers file written by [SaveHeaders]. An empty path yields nil headers.
func LoadHeaders(path string) (*BrowserHeaders, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read headers file: %w", err)
	}

	var b BrowserHeaders
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: headers file %s: %v", ErrInvalidConfig, path, err)
	}
	return &b, nil
}

// splitShellWords splits a command line honouring single quotes, double quotes and backslash escapes.
func splitShellWords(s string) []string {
	var (
		words   []string
		current strings.Builder
		quote   rune
		inWord  bool
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, current.String())
	}
	return words
}

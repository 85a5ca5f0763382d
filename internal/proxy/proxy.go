// Package proxy parses proxy lists: one scheme://[user:pass@]host:port entry
// per line.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Schemes lists the accepted proxy URL schemes.
var Schemes = []string{"http", "https", "socks5"}

// Parse reads one proxy URL per line. Blank lines and lines starting with #
// are skipped; malformed entries are logged and discarded.
func Parse(r io.Reader, logger *slog.Logger) ([]*url.URL, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var proxies []*url.URL
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		u, err := ParseURL(text)
		if err != nil {
			logger.Warn("discarding malformed proxy", "line", line, "error", err)
			continue
		}
		proxies = append(proxies, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxies: %w", err)
	}

	return proxies, nil
}

// LoadFile parses the proxy list at path. A missing file yields an empty list
// and a warning.
func LoadFile(path string, logger *slog.Logger) ([]*url.URL, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("proxy file not found, continuing without proxies", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open proxies: %w", err)
	}
	defer f.Close()

	proxies, err := Parse(f, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded proxies", "path", path, "count", len(proxies))
	return proxies, nil
}

// ParseURL validates a single proxy entry.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", redact(raw), err)
	}

	if !supported(u.Scheme) {
		return nil, fmt.Errorf("%s: scheme must be one of %v", u.Redacted(), Schemes)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%s: missing host", u.Redacted())
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%s: missing or invalid port", u.Redacted())
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return nil, fmt.Errorf("%s: unexpected path or query", u.Redacted())
	}

	return u, nil
}

func supported(scheme string) bool {
	for _, s := range Schemes {
		if scheme == s {
			return true
		}
	}
	return false
}

// redact hides everything between the scheme and the host for entries that
// do not parse as URLs.
func redact(raw string) string {
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		return "***" + raw[i:]
	}
	return raw
}

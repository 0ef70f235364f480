// Package geoip resolves client IPs to ISO country codes, feeding the
// narration-language default when a request names no language.
package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Reader wraps a MaxMind country database. A nil Reader is valid and
// resolves nothing, so callers can wire lookups unconditionally.
type Reader struct {
	db *geoip2.Reader
}

// Open loads the country database at path. An empty path disables
// geo lookups and returns a nil Reader.
func Open(path string) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Reader{db: db}, nil
}

// CountryCode returns the uppercase ISO 3166-1 code for ip. Addresses
// that are unparseable, private or unknown to the database resolve to
// ""; only a database fault is an error.
func (r *Reader) CountryCode(ip string) (string, error) {
	if r == nil || r.db == nil {
		return "", nil
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", parsed, err)
	}
	if record == nil {
		return "", nil
	}
	return strings.ToUpper(record.Country.IsoCode), nil
}

func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

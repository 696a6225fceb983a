package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"bloodhero/internal/domain"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// LocationResolver resolves approximate coordinates from IP addresses. Used
// as a last-resort donor location for nearby searches.
type LocationResolver interface {
	Locate(ip string) (domain.Point, error)
}

// Resolver provides city-level lookups backed by a MaxMind GeoIP2 database.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at the given path. When the path is empty, nil is returned.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Locate returns the approximate coordinates recorded for the provided IP.
func (r *Resolver) Locate(ip string) (domain.Point, error) {
	if r == nil || r.reader == nil {
		return domain.Point{}, ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return domain.Point{}, fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.City(parsed)
	if err != nil {
		return domain.Point{}, fmt.Errorf("geoip: lookup city: %w", err)
	}
	if record == nil {
		return domain.Point{}, ErrUnavailable
	}
	point := domain.Point{Lat: record.Location.Latitude, Lng: record.Location.Longitude}
	if point.IsZero() {
		return domain.Point{}, ErrUnavailable
	}
	return point, nil
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

package enrich

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Geo resolves client addresses against a MaxMind GeoLite2/GeoIP2 City
// database. A nil Geo (or nil reader) disables geolocation; lookups
// that miss are empty results, not errors.
type Geo struct {
	db *maxminddb.Reader
}

// NewGeo opens the database at path. An empty path returns a nil Geo,
// which disables enrichment.
func NewGeo(path string) (*Geo, error) {
	if path == "" {
		return nil, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Geo{db: db}, nil
}

// Location holds the geolocation fields stored with each page view.
type Location struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
}

// Lookup resolves an IP address to a location. Returns the zero
// Location when the address is unknown or geolocation is disabled.
func (g *Geo) Lookup(ip string) Location {
	if g == nil || g.db == nil || ip == "" {
		return Location{}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}

	var record struct {
		Country struct {
			ISO   string            `maxminddb:"iso_code"`
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"country"`
		Subdivisions []struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"subdivisions"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
	}
	if err := g.db.Lookup(parsed, &record); err != nil {
		return Location{}
	}

	loc := Location{
		CountryCode: record.Country.ISO,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc
}

// Close releases the underlying database.
func (g *Geo) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

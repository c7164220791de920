// Package enrich augments parsed page-view records with derived
// attributes: device/browser classification, geolocation and referrer
// category. Enrichment is pure record-in, record-out; the session
// tracker and loader downstream treat its output as given.
package enrich

import (
	"github.com/dustin/edgestat/internal/storage"
)

// Enricher applies all enrichment steps to a page view.
type Enricher struct {
	geo *Geo
}

// New creates an Enricher. geo may be nil to disable geolocation.
func New(geo *Geo) *Enricher {
	return &Enricher{geo: geo}
}

// Enrich fills derived fields on the record in place and returns it.
func (e *Enricher) Enrich(pv *storage.PageView) *storage.PageView {
	pv.Browser, pv.BrowserVersion, pv.OS, pv.OSVersion, pv.DeviceType, pv.IsBot = classifyUserAgent(pv.UserAgent)

	loc := e.geo.Lookup(pv.ClientIP)
	pv.CountryCode = loc.CountryCode
	pv.CountryName = loc.CountryName
	pv.Region = loc.Region
	pv.City = loc.City

	pv.ReferrerCategory = categorizeReferrer(pv.ReferrerDomain, pv.Host)
	return pv
}

package enrich

import "strings"

// Referrer categories stored with each page view.
const (
	ReferrerDirect   = "direct"
	ReferrerSearch   = "search"
	ReferrerSocial   = "social"
	ReferrerInternal = "internal"
	ReferrerReferral = "referral"
)

var searchEngines = []string{
	"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ask",
}

var socialNetworks = []string{
	"facebook", "twitter", "linkedin", "reddit", "pinterest",
	"instagram", "tiktok", "youtube",
}

// categorizeReferrer buckets a referrer domain into a traffic source
// category. siteHost is the host serving the content; a referrer from
// the same host counts as internal navigation.
func categorizeReferrer(referrerDomain, siteHost string) string {
	if referrerDomain == "" {
		return ReferrerDirect
	}
	domain := strings.ToLower(referrerDomain)

	for _, engine := range searchEngines {
		if strings.Contains(domain, engine) {
			return ReferrerSearch
		}
	}
	for _, network := range socialNetworks {
		if strings.Contains(domain, network) {
			return ReferrerSocial
		}
	}
	if siteHost != "" && strings.EqualFold(domain, siteHost) {
		return ReferrerInternal
	}
	return ReferrerReferral
}

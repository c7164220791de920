package enrich

import (
	"testing"

	"github.com/dustin/edgestat/internal/storage"
)

func TestClassifyUserAgent_Browsers(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantBrowser string
		wantOS      string
		wantDevice  string
	}{
		{
			name:        "Chrome on Windows",
			ua:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			wantBrowser: "Chrome",
			wantOS:      "Windows",
			wantDevice:  DeviceDesktop,
		},
		{
			name:        "Firefox on Linux",
			ua:          "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0",
			wantBrowser: "Firefox",
			wantOS:      "Linux",
			wantDevice:  DeviceDesktop,
		},
		{
			name:        "Safari on macOS",
			ua:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			wantBrowser: "Safari",
			wantOS:      "macOS",
			wantDevice:  DeviceDesktop,
		},
		{
			name:        "Safari on iPhone",
			ua:          "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			wantBrowser: "Safari",
			wantOS:      "iOS",
			wantDevice:  DeviceMobile,
		},
		{
			name:        "Chrome on Android",
			ua:          "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
			wantBrowser: "Chrome",
			wantOS:      "Android",
			wantDevice:  DeviceMobile,
		},
		{
			name:        "Safari on iPad",
			ua:          "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			wantBrowser: "Safari",
			wantOS:      "iOS",
			wantDevice:  DeviceTablet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser, _, osName, _, device, isBot := classifyUserAgent(tt.ua)
			if browser != tt.wantBrowser {
				t.Errorf("browser = %q, want %q", browser, tt.wantBrowser)
			}
			if osName != tt.wantOS {
				t.Errorf("os = %q, want %q", osName, tt.wantOS)
			}
			if device != tt.wantDevice {
				t.Errorf("device = %q, want %q", device, tt.wantDevice)
			}
			if isBot {
				t.Errorf("isBot = true, want false")
			}
		})
	}
}

func TestClassifyUserAgent_Bots(t *testing.T) {
	tests := []struct {
		ua       string
		wantName string
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", "Bingbot"},
		{"SomeRandomCrawler/1.0", "Unknown Bot"},
	}

	for _, tt := range tests {
		browser, _, _, _, device, isBot := classifyUserAgent(tt.ua)
		if !isBot {
			t.Errorf("classifyUserAgent(%q): isBot = false, want true", tt.ua)
		}
		if device != DeviceBot {
			t.Errorf("classifyUserAgent(%q): device = %q, want %q", tt.ua, device, DeviceBot)
		}
		if browser != tt.wantName {
			t.Errorf("classifyUserAgent(%q): name = %q, want %q", tt.ua, browser, tt.wantName)
		}
	}
}

func TestClassifyUserAgent_Empty(t *testing.T) {
	browser, _, osName, _, device, isBot := classifyUserAgent("")
	if browser != "Unknown" || osName != "Unknown" || device != DeviceUnknown || isBot {
		t.Errorf("empty UA classified as %q/%q/%q/bot=%v, want Unknown/Unknown/unknown/false",
			browser, osName, device, isBot)
	}
}

func TestCategorizeReferrer(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		siteHost string
		want     string
	}{
		{"no referrer", "", "example.com", ReferrerDirect},
		{"google", "www.google.com", "example.com", ReferrerSearch},
		{"duckduckgo", "duckduckgo.com", "example.com", ReferrerSearch},
		{"facebook", "m.facebook.com", "example.com", ReferrerSocial},
		{"reddit", "old.reddit.com", "example.com", ReferrerSocial},
		{"same host", "example.com", "example.com", ReferrerInternal},
		{"same host case-insensitive", "Example.COM", "example.com", ReferrerInternal},
		{"other site", "news.ycombinator.com", "example.com", ReferrerReferral},
		{"other site without own host", "blog.example.org", "", ReferrerReferral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeReferrer(tt.domain, tt.siteHost); got != tt.want {
				t.Errorf("categorizeReferrer(%q, %q) = %q, want %q", tt.domain, tt.siteHost, got, tt.want)
			}
		})
	}
}

func TestGeo_NilAndDisabled(t *testing.T) {
	geo, err := NewGeo("")
	if err != nil {
		t.Fatalf("NewGeo(\"\") returned error: %v", err)
	}
	if geo != nil {
		t.Fatalf("NewGeo(\"\") = %v, want nil", geo)
	}

	// Lookups against a nil Geo must be safe no-ops.
	if loc := geo.Lookup("192.0.2.1"); loc != (Location{}) {
		t.Errorf("nil Geo lookup = %+v, want zero", loc)
	}
	if err := geo.Close(); err != nil {
		t.Errorf("nil Geo close: %v", err)
	}
}

func TestGeo_MissingDatabase(t *testing.T) {
	if _, err := NewGeo("/does/not/exist.mmdb"); err == nil {
		t.Errorf("NewGeo on a missing database succeeded, want error")
	}
}

func TestEnrich_FillsDerivedFields(t *testing.T) {
	e := New(nil)

	pv := &storage.PageView{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		ReferrerDomain: "www.google.com",
		Host:           "example.com",
		ClientIP:       "192.0.2.1",
	}

	got := e.Enrich(pv)
	if got != pv {
		t.Fatalf("Enrich did not return the same record")
	}
	if pv.Browser != "Chrome" {
		t.Errorf("Browser = %q, want %q", pv.Browser, "Chrome")
	}
	if pv.OS != "Windows" {
		t.Errorf("OS = %q, want %q", pv.OS, "Windows")
	}
	if pv.DeviceType != DeviceDesktop {
		t.Errorf("DeviceType = %q, want %q", pv.DeviceType, DeviceDesktop)
	}
	if pv.ReferrerCategory != ReferrerSearch {
		t.Errorf("ReferrerCategory = %q, want %q", pv.ReferrerCategory, ReferrerSearch)
	}
	// Geolocation disabled: fields stay empty.
	if pv.CountryCode != "" || pv.City != "" {
		t.Errorf("geo fields set without a database: %q/%q", pv.CountryCode, pv.City)
	}
}

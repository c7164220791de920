package enrich

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device type classifications stored with each page view.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// botSignatures maps lower-cased user-agent substrings to crawler names.
var botSignatures = map[string]string{
	"googlebot":           "Googlebot",
	"bingbot":             "Bingbot",
	"yandexbot":           "YandexBot",
	"duckduckbot":         "DuckDuckBot",
	"baiduspider":         "Baiduspider",
	"facebookexternalhit": "Facebook",
	"twitterbot":          "Twitterbot",
	"linkedinbot":         "LinkedInBot",
	"slurp":               "Yahoo Slurp",
	"ahrefsbot":           "AhrefsBot",
	"semrushbot":          "SemrushBot",
	"petalbot":            "PetalBot",
	"applebot":            "Applebot",
	"gptbot":              "GPTBot",
	"claudebot":           "ClaudeBot",
	"bytespider":          "ByteSpider",
	"uptimerobot":         "UptimeRobot",
	"pingdom":             "Pingdom",
	"statuscake":          "StatusCake",
}

// classifyUserAgent extracts browser, OS and device information from a
// raw user-agent string.
func classifyUserAgent(uaString string) (browser, browserVersion, osName, osVersion, deviceType string, isBot bool) {
	if uaString == "" {
		return "Unknown", "", "Unknown", "", DeviceUnknown, false
	}

	ua := useragent.New(uaString)
	lowerUA := strings.ToLower(uaString)

	if ua.Bot() || containsAny(lowerUA, "bot", "crawler", "spider", "crawl", "slurp", "archiver") {
		name := identifyBot(lowerUA)
		return name, "", "Bot", "", DeviceBot, true
	}

	browser, browserVersion = ua.Browser()
	browser = normalizeBrowserName(browser)
	osName, osVersion = parseOS(ua.OS(), lowerUA)

	switch {
	case isTablet(lowerUA):
		deviceType = DeviceTablet
	case ua.Mobile():
		deviceType = DeviceMobile
	default:
		deviceType = DeviceDesktop
	}
	if browser == "" {
		browser = "Unknown"
	}
	if osName == "" {
		osName = "Unknown"
	}
	return browser, browserVersion, osName, osVersion, deviceType, false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func identifyBot(lowerUA string) string {
	for signature, name := range botSignatures {
		if strings.Contains(lowerUA, signature) {
			return name
		}
	}
	return "Unknown Bot"
}

func normalizeBrowserName(name string) string {
	switch strings.ToLower(name) {
	case "chrome", "google chrome":
		return "Chrome"
	case "firefox", "mozilla firefox":
		return "Firefox"
	case "safari", "mobile safari":
		return "Safari"
	case "edge", "microsoft edge":
		return "Edge"
	case "opera", "opera mini":
		return "Opera"
	case "ie", "internet explorer", "msie":
		return "Internet Explorer"
	case "samsung browser", "samsungbrowser":
		return "Samsung Browser"
	case "":
		return "Unknown"
	default:
		return name
	}
}

func parseOS(osInfo, lowerUA string) (string, string) {
	osLower := strings.ToLower(osInfo)

	switch {
	case strings.Contains(lowerUA, "iphone") || strings.Contains(lowerUA, "ipad") || strings.Contains(osLower, "ios"):
		return "iOS", extractVersion(osInfo)
	case strings.Contains(osLower, "android"):
		return "Android", extractVersion(osInfo)
	case strings.Contains(osLower, "windows"):
		return "Windows", extractWindowsVersion(osLower)
	case strings.Contains(osLower, "mac os") || strings.Contains(osLower, "macos") || strings.Contains(lowerUA, "macintosh"):
		return "macOS", extractVersion(osInfo)
	case strings.Contains(osLower, "cros") || strings.Contains(lowerUA, "chromeos"):
		return "Chrome OS", ""
	case strings.Contains(osLower, "linux"):
		return "Linux", ""
	case osInfo == "":
		return "Unknown", ""
	}
	return osInfo, ""
}

func extractVersion(osInfo string) string {
	for _, part := range strings.Fields(osInfo) {
		if len(part) > 0 && part[0] >= '0' && part[0] <= '9' {
			return strings.TrimRight(part, ";)")
		}
	}
	return ""
}

func extractWindowsVersion(osLower string) string {
	for _, v := range []string{"11", "10", "8.1", "8", "7", "vista", "xp"} {
		if strings.Contains(osLower, v) {
			if v == "vista" {
				return "Vista"
			}
			if v == "xp" {
				return "XP"
			}
			return v
		}
	}
	return ""
}

func isTablet(lowerUA string) bool {
	return containsAny(lowerUA, "ipad", "tablet", "kindle", "playbook", "silk")
}

package useragent

import (
	"net/http"
	"strings"
)

// Class is the coarse device category of a user agent.
type Class string

const (
	ClassPhone   Class = "phone"
	ClassTablet  Class = "tablet"
	ClassDesktop Class = "desktop"
	ClassBot     Class = "bot"
	ClassUnknown Class = "unknown"
)

// Mobile reports whether the class is a handheld touch device.
func (c Class) Mobile() bool {
	return c == ClassPhone || c == ClassTablet
}

type keywordSet []string

func (k keywordSet) contains(s string) bool {
	for _, keyword := range k {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

var (
	botKeywords     = keywordSet{"bot", "spider", "crawler", "lighthouse", "slurp", "headless", "monitor", "fetcher", "scraper"}
	tabletKeywords  = keywordSet{"tablet", "kindle", "silk", "playbook"}
	phoneKeywords   = keywordSet{"mobile", "iphone", "ipod", "windows phone", "iemobile", "blackberry", "opera mini"}
	desktopKeywords = keywordSet{"windows", "macintosh", "mac os x", "linux", "x11", "cros"}
)

// Classify returns the device class of a raw User-Agent header.
// Apple identifiers are checked first, then bots, then the Android
// phone/tablet split, then generic keywords.
func Classify(ua string) Class {
	s := strings.ToLower(strings.TrimSpace(ua))
	if s == "" {
		return ClassUnknown
	}

	switch {
	case strings.Contains(s, "ipad"):
		return ClassTablet
	case strings.Contains(s, "iphone"), strings.Contains(s, "ipod"):
		return ClassPhone
	case botKeywords.contains(s):
		return ClassBot
	case strings.Contains(s, "android"):
		// Android tablets omit the "Mobile" token.
		if strings.Contains(s, "mobile") {
			return ClassPhone
		}
		return ClassTablet
	case tabletKeywords.contains(s):
		return ClassTablet
	case phoneKeywords.contains(s):
		return ClassPhone
	case desktopKeywords.contains(s):
		return ClassDesktop
	}
	return ClassUnknown
}

// IsMobile reports whether ua belongs to a phone or tablet browser.
func IsMobile(ua string) bool {
	return Classify(ua).Mobile()
}

// FromRequest classifies the request's User-Agent header.
func FromRequest(r *http.Request) Class {
	if r == nil {
		return ClassUnknown
	}
	return Classify(r.UserAgent())
}

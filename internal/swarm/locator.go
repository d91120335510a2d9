package swarm

import (
	"net/url"
	"strings"
)

// ExtractInfohash pulls the content fingerprint out of a magnet-style
// locator. The delimiter convention is fixed: "...btih:<infohash>&...".
// Returns "" when the locator carries no fingerprint.
func ExtractInfohash(locator string) string {
	_, rest, found := strings.Cut(locator, "btih:")
	if !found {
		return ""
	}
	hash, _, _ := strings.Cut(rest, "&")
	return strings.ToLower(strings.TrimSpace(hash))
}

// TrackerURLs returns the tr= announce parameters of a magnet locator, in
// order. Malformed locators yield nil.
func TrackerURLs(locator string) []string {
	u, err := url.Parse(locator)
	if err != nil {
		return nil
	}
	var trackers []string
	for _, tr := range u.Query()["tr"] {
		if tr != "" {
			trackers = append(trackers, tr)
		}
	}
	return trackers
}

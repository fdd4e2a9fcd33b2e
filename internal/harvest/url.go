package harvest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const siteBase = "https://www.youtube.com"

var (
	itemIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	shortsPathRe     = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`)
	watchMarkupRe    = regexp.MustCompile(`watch\?v=([A-Za-z0-9_-]{11})`)
	handleRe         = regexp.MustCompile(`/@([A-Za-z0-9_.-]+)`)
	channelPathRe    = regexp.MustCompile(`/channel/([A-Za-z0-9_-]+)`)
	playlistParamRe  = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]+)`)
	shortLinkDomains = []string{"youtu.be"}
)

// CanonicalURL reduces a surface URL to its canonical navigation form:
// shorts paths keep only the identifier, short-links become watch URLs, and
// watch URLs are stripped of every query parameter except the identifier.
// Anything else loses only its fragment. Idempotent.
func CanonicalURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.SplitN(raw, "#", 2)[0]
	}
	if m := shortsPathRe.FindStringSubmatch(parsed.Path); m != nil {
		return fmt.Sprintf("%s/shorts/%s", siteBase, m[1])
	}
	for _, d := range shortLinkDomains {
		if strings.Contains(parsed.Host, d) {
			if id := strings.SplitN(strings.Trim(parsed.Path, "/"), "/", 2)[0]; id != "" {
				return fmt.Sprintf("%s/watch?v=%s", siteBase, id)
			}
		}
	}
	if strings.Contains(parsed.Path, "watch") && parsed.RawQuery != "" {
		if v := parsed.Query().Get("v"); v != "" {
			return fmt.Sprintf("%s/watch?v=%s", siteBase, v)
		}
	}
	return strings.SplitN(raw, "#", 2)[0]
}

// ExtractItemID returns the 11-character item identifier embedded in a URL,
// or "" when none is present. The identifier is the per-run dedup key: two
// URLs with the same identifier are the same item.
func ExtractItemID(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, d := range shortLinkDomains {
		if strings.Contains(parsed.Host, d) {
			id := strings.SplitN(strings.Trim(parsed.Path, "/"), "/", 2)[0]
			if itemIDPattern.MatchString(id) {
				return id
			}
		}
	}
	if strings.Contains(parsed.Path, "/watch") && parsed.RawQuery != "" {
		if v := parsed.Query().Get("v"); itemIDPattern.MatchString(v) {
			return v
		}
	}
	if m := shortsPathRe.FindStringSubmatch(parsed.Path); m != nil {
		return m[1]
	}
	return ""
}

// ExtractChannelRef pulls a channel reference (handle first, then raw
// channel identifier) out of a URL. Either return may be empty.
func ExtractChannelRef(raw string) (handle, channelID string) {
	if m := handleRe.FindStringSubmatch(raw); m != nil {
		handle = m[1]
	}
	if m := channelPathRe.FindStringSubmatch(raw); m != nil {
		channelID = m[1]
	}
	return handle, channelID
}

// ExtractPlaylistID returns the playlist identifier from a URL, or "".
func ExtractPlaylistID(raw string) string {
	if m := playlistParamRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// IsShortsURL reports whether the URL addresses a short-form item.
func IsShortsURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "/shorts/")
}

// IsItemURL reports whether the URL addresses a single content item.
func IsItemURL(raw string) bool {
	u := strings.ToLower(raw)
	return strings.Contains(u, "watch?v=") || strings.Contains(u, "/shorts/") || strings.Contains(u, "youtu.be/")
}

// IsChannelURL reports whether the URL addresses a channel page.
func IsChannelURL(raw string) bool {
	u := strings.ToLower(raw)
	return strings.Contains(u, "/@") || strings.Contains(u, "/channel/") || strings.Contains(u, "/c/")
}

// DetectCategory classifies an item URL as short-form or regular. Listing
// categories (channel, playlist) are decided by the harvester, not here.
func DetectCategory(raw string) Category {
	if IsShortsURL(raw) {
		return CategoryShorts
	}
	return CategoryVideo
}

// ThumbnailURL derives the default highest-resolution thumbnail for an item.
func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/maxresdefault.jpg", id)
}

// ChannelURL builds the canonical channel URL from a handle or identifier,
// preferring the handle. Returns "" when neither is known.
func ChannelURL(handle, channelID string) string {
	switch {
	case handle != "":
		return fmt.Sprintf("%s/@%s", siteBase, strings.TrimPrefix(handle, "@"))
	case channelID != "":
		return fmt.Sprintf("%s/channel/%s", siteBase, channelID)
	default:
		return ""
	}
}

// SearchURL builds the results-page URL for a keyword.
func SearchURL(keyword string) string {
	return siteBase + "/results?search_query=" + url.QueryEscape(keyword)
}

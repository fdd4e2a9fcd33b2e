package harvest

import "strings"

var knownCategories = map[string]Category{
	"video":    CategoryVideo,
	"videos":   CategoryVideo,
	"short":    CategoryShorts,
	"shorts":   CategoryShorts,
	"channel":  CategoryChannel,
	"channels": CategoryChannel,
	"playlist": CategoryPlaylist,
	"live":     CategoryLive,
	"movie":    CategoryMovie,
	"movies":   CategoryMovie,
}

// ExpandCategories normalizes a requested category list (entries may be CSV
// strings, "short" aliases, or "any") into an ordered Category slice.
//
// "any" and an empty request expand to the categories whose caps are
// positive; a zero cap silently excludes its category, so caps double as
// feature flags. When nothing qualifies the default is regular videos.
func ExpandCategories(requested []string, caps Caps) []Category {
	var out []Category
	seen := make(map[Category]struct{})
	wantAny := len(requested) == 0

	for _, entry := range requested {
		for _, raw := range strings.Split(entry, ",") {
			name := strings.ToLower(strings.TrimSpace(raw))
			if name == "" {
				continue
			}
			if name == "any" {
				wantAny = true
				continue
			}
			cat, ok := knownCategories[name]
			if !ok {
				continue
			}
			if _, dup := seen[cat]; dup {
				continue
			}
			seen[cat] = struct{}{}
			out = append(out, cat)
		}
	}

	if wantAny && len(out) == 0 {
		for _, cat := range []Category{CategoryVideo, CategoryShorts} {
			if caps.For(cat) > 0 {
				out = append(out, cat)
			}
		}
	}
	if len(out) == 0 {
		out = []Category{CategoryVideo}
	}
	return out
}

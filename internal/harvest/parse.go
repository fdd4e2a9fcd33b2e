package harvest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	countRe     = regexp.MustCompile(`([\d.]+)\s*(k|m|b)?`)
	digitsRe    = regexp.MustCompile(`[^0-9]`)
	nonASCIIRe  = regexp.MustCompile(`[^\x00-\x7F]+`)
	hashtagRe   = regexp.MustCompile(`#(\w+)`)
	urlLiteral  = regexp.MustCompile(`https?://[^\s<>]+`)
	isoDurRe    = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	countSuffix = map[string]float64{"k": 1e3, "m": 1e6, "b": 1e9}
)

// ParseCount converts display text like "1.2K", "3M" or "12,345" into a
// number. Empty or non-numeric text yields nil, never zero.
func ParseCount(text string) *int64 {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, ",", "")
	t = nonASCIIRe.ReplaceAllString(t, "")
	if t == "" {
		return nil
	}
	m := countRe.FindStringSubmatch(t)
	if m == nil || m[1] == "" {
		d := digitsRe.ReplaceAllString(t, "")
		if d == "" {
			return nil
		}
		n, err := strconv.ParseInt(d, 10, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if mult, ok := countSuffix[m[2]]; ok {
		num *= mult
	}
	n := int64(num)
	return &n
}

// ParseDuration normalizes a duration to whole seconds from either a
// machine-readable "PT1H2M3S" code or a colon display form ("MM:SS" or
// "H:MM:SS"). Unparseable input yields nil.
func ParseDuration(text string) *int64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	if strings.HasPrefix(t, "PT") {
		m := isoDurRe.FindStringSubmatch(t)
		if m == nil {
			return nil
		}
		var total int64
		for i, mult := range []int64{3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			v, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return nil
			}
			total += v * mult
		}
		return &total
	}
	parts := strings.Split(t, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	var total int64
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil
		}
		total = total*60 + v
	}
	return &total
}

// FormatClock renders seconds as "MM:SS", or "HH:MM:SS" past an hour.
func FormatClock(seconds *int64) *string {
	if seconds == nil {
		return nil
	}
	s := *seconds
	h, m, sec := s/3600, (s%3600)/60, s%60
	var out string
	if h > 0 {
		out = fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	} else {
		out = fmt.Sprintf("%02d:%02d", m, sec)
	}
	return &out
}

// ExtractHashtags scans text for leading-# tokens.
func ExtractHashtags(text string) []string {
	if text == "" {
		return nil
	}
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ExtractLinks finds URL literals in text, deduplicated by exact match in
// first-seen order.
func ExtractLinks(text string) []DescriptionLink {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []DescriptionLink
	for _, l := range urlLiteral.FindAllString(text, -1) {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, DescriptionLink{URL: l, Text: l})
	}
	return out
}

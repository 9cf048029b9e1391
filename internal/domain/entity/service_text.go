package entity

import "strings"

// isServiceRune reports whether r survives service-name normalization:
// lowercase ASCII letters, digits and CJK unified ideographs
func isServiceRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || (r >= 0x4e00 && r <= 0x9fff)
}

// NormalizeServiceText lowercases value, replaces every run of other
// characters with a single space and trims the result.
// "QQ音乐!!" becomes "qq音乐".
func NormalizeServiceText(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))

	var b strings.Builder
	b.Grow(len(lower))
	pendingSpace := false
	for _, r := range lower {
		if !isServiceRune(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// SlugifyServiceName keeps only lowercase ASCII letters and digits
func SlugifyServiceName(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))

	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FirstASCIIWord returns the first run of lowercase ASCII letters and digits
// in value, or an empty string
func FirstASCIIWord(value string) string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IconCacheKey derives the icon cache identity from a service name and
// category. It returns an empty string when both normalize to nothing.
func IconCacheKey(name, category string) string {
	key := NormalizeServiceText(name) + "|" + NormalizeServiceText(category)
	if key == "|" {
		return ""
	}
	return key
}

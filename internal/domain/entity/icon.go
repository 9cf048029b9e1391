package entity

import "time"

// IconProviderNone is reported when no icon could be resolved
const IconProviderNone = "none"

// IconCacheEntry is a persisted icon resolution keyed by its cache key
type IconCacheEntry struct {
	CacheKey  string    `json:"cache_key"`
	IconURL   string    `json:"icon_url"`
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IconCandidate is a heuristically generated icon URL. Position in a
// candidate list encodes priority.
type IconCandidate struct {
	URL      string
	Provider string
}

// IconResolution is the outcome of resolving an icon for a service name
type IconResolution struct {
	IconURL  string `json:"iconUrl"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
}

// NoIcon is the empty resolution returned when nothing validates
func NoIcon() IconResolution {
	return IconResolution{IconURL: "", Provider: IconProviderNone, Cached: false}
}

// KeywordHint maps a keyword found in a service name to a curated icon
// and the domain it is served from
type KeywordHint struct {
	Keyword string `json:"keyword"`
	Domain  string `json:"domain"`
	Icon    string `json:"icon"`
}

// NameAlias maps a (usually non-latin) service name to latin slugs
type NameAlias struct {
	Key     string   `json:"key"`
	Aliases []string `json:"aliases"`
}

// CategoryHint adds a generic icon when a category contains any keyword
type CategoryHint struct {
	Keywords []string `json:"keywords"`
	Icon     string   `json:"icon"`
}

// IconHintTable is the data that drives candidate generation
type IconHintTable struct {
	Keywords   []KeywordHint  `json:"keywords"`
	Aliases    []NameAlias    `json:"aliases"`
	Categories []CategoryHint `json:"categories"`
}

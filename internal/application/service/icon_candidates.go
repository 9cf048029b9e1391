package service

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

// MaxIconCandidates bounds the number of URLs probed per resolution
const MaxIconCandidates = 24

const maxSlugVariants = 4

// Candidate providers, ordered roughly by how specific they are
const (
	ProviderHintSimpleIcons     = "hint-simpleicons"
	ProviderAliasSimpleIcons    = "alias-simpleicons"
	ProviderAliasJSDelivr       = "alias-simpleicons-jsdelivr"
	ProviderAliasGoogleFavicon  = "alias-google-favicon"
	ProviderAliasDDGFavicon     = "alias-ddg-favicon"
	ProviderSimpleIconsCDN      = "simpleicons-cdn"
	ProviderSimpleIconsJSDelivr = "simpleicons-jsdelivr"
	ProviderGoogleFavicon       = "google-favicon"
	ProviderDuckDuckGoFavicon   = "duckduckgo-favicon"
	ProviderCategoryHint        = "category-hint"
)

var (
	aliasTLDs = []string{"com", "cn", "io", "ai", "app"}
	slugTLDs  = []string{"com", "io", "ai", "app", "co", "dev"}

	productSuffix = regexp.MustCompile(`(plus|premium|pro|official|app)$`)
)

func googleFaviconURL(domain string) string {
	return "https://www.google.com/s2/favicons?sz=128&domain=" + url.QueryEscape(domain)
}

func duckDuckGoFaviconURL(domain string) string {
	return "https://icons.duckduckgo.com/ip3/" + url.PathEscape(domain) + ".ico"
}

func simpleIconsURL(slug string) string {
	return "https://cdn.simpleicons.org/" + url.PathEscape(slug)
}

func jsDelivrIconURL(slug string) string {
	return "https://cdn.jsdelivr.net/npm/simple-icons/icons/" + url.PathEscape(slug) + ".svg"
}

// candidateList collects candidates in first-seen order, dropping repeated
// (provider, url) pairs
type candidateList struct {
	items []entity.IconCandidate
	seen  map[string]struct{}
}

func (l *candidateList) add(rawURL, provider string) {
	if rawURL == "" {
		return
	}
	key := provider + "|" + rawURL
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, entity.IconCandidate{URL: rawURL, Provider: provider})
}

// GenerateIconCandidates produces the ordered, deduplicated icon URLs worth
// probing for a service. Curated keyword hints come first, then aliases,
// then slug guesses, then category hints. It performs no I/O.
func GenerateIconCandidates(name, category string, hints entity.IconHintTable) []entity.IconCandidate {
	n := entity.NormalizeServiceText(name)
	c := entity.NormalizeServiceText(category)
	list := &candidateList{seen: make(map[string]struct{})}

	for _, hint := range hints.Keywords {
		if hint.Keyword == "" || !strings.Contains(n, hint.Keyword) {
			continue
		}
		list.add(hint.Icon, ProviderHintSimpleIcons)
		if hint.Domain != "" {
			list.add(googleFaviconURL(hint.Domain), ProviderGoogleFavicon)
			list.add(duckDuckGoFaviconURL(hint.Domain), ProviderDuckDuckGoFavicon)
		}
	}

	for _, alias := range hints.Aliases {
		if alias.Key == "" {
			continue
		}
		if !strings.Contains(name, alias.Key) && !strings.Contains(n, strings.ToLower(alias.Key)) {
			continue
		}
		for _, slug := range alias.Aliases {
			list.add(simpleIconsURL(slug), ProviderAliasSimpleIcons)
			list.add(jsDelivrIconURL(slug), ProviderAliasJSDelivr)
			for _, tld := range aliasTLDs {
				domain := slug + "." + tld
				list.add(googleFaviconURL(domain), ProviderAliasGoogleFavicon)
				list.add(duckDuckGoFaviconURL(domain), ProviderAliasDDGFavicon)
			}
		}
	}

	for _, slug := range slugVariants(name) {
		list.add(simpleIconsURL(slug), ProviderSimpleIconsCDN)
		list.add(jsDelivrIconURL(slug), ProviderSimpleIconsJSDelivr)
		for _, tld := range slugTLDs {
			domain := slug + "." + tld
			list.add(googleFaviconURL(domain), ProviderGoogleFavicon)
			list.add(duckDuckGoFaviconURL(domain), ProviderDuckDuckGoFavicon)
		}
	}

	if c != "" {
		for _, hint := range hints.Categories {
			for _, keyword := range hint.Keywords {
				if keyword != "" && strings.Contains(c, keyword) {
					list.add(hint.Icon, ProviderCategoryHint)
					break
				}
			}
		}
	}

	if len(list.items) > MaxIconCandidates {
		return list.items[:MaxIconCandidates]
	}
	return list.items
}

// slugVariants returns the full slug, the slug without a product suffix
// and the first latin word of name, skipping empty and repeated values
func slugVariants(name string) []string {
	slug := entity.SlugifyServiceName(name)
	if slug == "" {
		return nil
	}

	variants := []string{slug}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}
	add(productSuffix.ReplaceAllString(slug, ""))
	add(entity.FirstASCIIWord(name))

	if len(variants) > maxSlugVariants {
		variants = variants[:maxSlugVariants]
	}
	return variants
}

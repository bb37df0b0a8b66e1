// Package people parses search-result and profile pages from the
// people-search site. Everything here is pure: callers fetch the HTML.
package people

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	unitMarker = regexp.MustCompile(`#\d+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Slug turns a search component into its URL path form. It trims, turns
// whitespace runs into "-", then drops unit markers such as "#12", so
// "12 Oak St #4" becomes "12-Oak-St-" as the site expects.
func Slug(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	return unitMarker.ReplaceAllString(s, "")
}

// AddressSearchURL builds the results URL for an address search.
func AddressSearchURL(base, address, city, state string, page int) string {
	return joinPath(base, "address", Slug(address), Slug(city), Slug(state), strconv.Itoa(page))
}

// NameSearchURL builds the results URL for a name search. The site orders
// the location as state then city.
func NameSearchURL(base, name, state, city string, page int) string {
	return joinPath(base, "people", Slug(name), Slug(state), Slug(city), strconv.Itoa(page))
}

func joinPath(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

// ResolveURL makes href absolute against base. Unparseable input is
// returned unchanged.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// DecodeEmail reverses the site's email link obfuscation. The address is the
// part of the link after "/email/", with the last "_." run (an underscore
// followed by dots, with no later underscore-plus-character) rewritten to
// "@". Links without the marker decode to "".
func DecodeEmail(href string) string {
	_, encoded, ok := strings.Cut(href, "/email/")
	if !ok || encoded == "" {
		return ""
	}
	for i := 0; i+1 < len(encoded); i++ {
		if encoded[i] != '_' || encoded[i+1] != '.' {
			continue
		}
		j := i + 1
		for j < len(encoded) && encoded[j] == '.' {
			j++
		}
		if !hasUnderscorePair(encoded[j:]) {
			return encoded[:i] + "@" + encoded[j:]
		}
	}
	return encoded
}

// hasUnderscorePair reports whether s contains an underscore followed by any
// other character.
func hasUnderscorePair(s string) bool {
	i := strings.IndexByte(s, '_')
	for i >= 0 {
		if i+1 < len(s) && s[i+1] != '\n' {
			return true
		}
		next := strings.IndexByte(s[i+1:], '_')
		if next < 0 {
			return false
		}
		i += next + 1
	}
	return false
}

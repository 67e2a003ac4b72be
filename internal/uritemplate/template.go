// Package uritemplate renders login and logout redirect URIs from
// administrator supplied templates with %tag% placeholders.
package uritemplate

import (
	"net/url"
	"slices"
	"sort"
	"strings"
)

// Tag names always present when building links.
const (
	TagHost     = "host"
	TagBase     = "base"
	TagSite     = "site"
	TagRedirect = "redirect"
)

// encodedSuffix marks the URL-encoded variant of a tag.
const encodedSuffix = "_encoded"

// Tags maps tag names to their values.
type Tags map[string]string

// Render substitutes every %name% in template with the tag value and every
// %name_encoded% with its URL-encoded form.
//
// A template that uses no named tag but contains %s is treated as a
// printf-style template: the first %s receives the encoded redirect tag and
// %% collapses to %.
func Render(template string, tags Tags) string {
	result := template
	named := false

	for _, name := range tagOrder(tags) {
		value := tags[name]

		plain := "%" + name + "%"
		encoded := "%" + name + encodedSuffix + "%"

		if strings.Contains(result, plain) || strings.Contains(result, encoded) {
			named = true
		}

		result = strings.ReplaceAll(result, plain, value)
		result = strings.ReplaceAll(result, encoded, url.QueryEscape(value))
	}

	if !named && strings.Contains(result, "%s") {
		return renderLegacy(result, url.QueryEscape(tags[TagRedirect]))
	}

	return result
}

// standardTags are substituted first and in this order, so a value holding
// the token of a later tag is expanded again.
var standardTags = []string{TagHost, TagBase, TagSite, TagRedirect}

// tagOrder returns the standard tags present in tags followed by the
// remaining tag names in sorted order.
func tagOrder(tags Tags) []string {
	names := make([]string, 0, len(tags))
	for _, name := range standardTags {
		if _, ok := tags[name]; ok {
			names = append(names, name)
		}
	}

	extra := make([]string, 0, len(tags))
	for name := range tags {
		if !slices.Contains(standardTags, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	return append(names, extra...)
}

// renderLegacy fills the first %s verb and unescapes %%.
func renderLegacy(template, redirect string) string {
	var b strings.Builder
	b.Grow(len(template) + len(redirect))

	filled := false
	for i := 0; i < len(template); i++ {
		if template[i] != '%' || i+1 == len(template) {
			b.WriteByte(template[i])
			continue
		}

		switch next := template[i+1]; {
		case next == '%':
			b.WriteByte('%')
			i++
		case next == 's' && !filled:
			b.WriteString(redirect)
			filled = true
			i++
		default:
			b.WriteByte('%')
		}
	}

	return b.String()
}

// BaseURL returns the scheme, user info and host of siteURL with path,
// query and fragment stripped. An unparsable or relative URL yields "".
func BaseURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	base := url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
	}

	return base.String()
}

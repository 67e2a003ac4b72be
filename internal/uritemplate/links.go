package uritemplate

import (
	"net/url"
	"strings"
)

// RedirectParam is the query parameter the login endpoint reads its
// return target from.
const RedirectParam = "redirect_to"

// Links builds login and logout URIs for one site.
type Links struct {
	SiteURL   string
	LoginPath string
}

// NewLinks creates a link builder for the site at siteURL whose local
// login endpoint is served at loginPath.
func NewLinks(siteURL, loginPath string) *Links {
	return &Links{
		SiteURL:   strings.TrimRight(siteURL, "/"),
		LoginPath: loginPath,
	}
}

// Login renders the login URI. The redirect tag is the local login
// endpoint carrying returnTo as its redirect_to parameter.
func (l *Links) Login(template, host, returnTo string) string {
	redirect := l.SiteURL + "/" + strings.TrimLeft(l.LoginPath, "/") +
		"?" + RedirectParam + "=" + url.QueryEscape(returnTo)

	return Render(template, l.tags(host, redirect))
}

// Logout renders the logout URI. The redirect tag is the site URL.
func (l *Links) Logout(template, host string) string {
	return Render(template, l.tags(host, l.SiteURL))
}

func (l *Links) tags(host, redirect string) Tags {
	return Tags{
		TagHost:     host,
		TagBase:     BaseURL(l.SiteURL),
		TagSite:     l.SiteURL,
		TagRedirect: redirect,
	}
}

// Package urlscan locates URLs in message text and classifies them as
// invite links, self-referential platform links or external links.
// Extraction errs toward precision: candidates that fail URL validation
// are dropped silently.
package urlscan

import (
	"net/url"
	"regexp"
	"strings"
)

// Class is the handling category of an extracted URL.
type Class int

const (
	// ClassExternal links are forwarded to page enrichment.
	ClassExternal Class = iota
	// ClassInvite links resolve to a guild the feeder may join.
	ClassInvite
	// ClassSelf links point back at the platform and are dropped.
	ClassSelf
)

func (c Class) String() string {
	switch c {
	case ClassInvite:
		return "invite"
	case ClassSelf:
		return "self"
	default:
		return "external"
	}
}

const (
	inviteHost = "discord.gg"
	webHost    = "discord.com"
	legacyHost = "discordapp.com"
)

// Link is one extracted and classified URL.
type Link struct {
	// Raw is the candidate as it appeared in the text, trailing
	// punctuation stripped.
	Raw   string
	URL   *url.URL
	Class Class
	// InviteCode is set for ClassInvite links.
	InviteCode string
}

var candidateRe = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// Extract returns every syntactically valid URL in text, in order of first
// appearance, duplicates preserved.
func Extract(text string) []Link {
	var links []Link
	for _, raw := range candidateRe.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, `.,;:!?)]}>`)
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
			continue
		}
		links = append(links, classify(raw, u))
	}
	return links
}

func classify(raw string, u *url.URL) Link {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	if host == inviteHost {
		return Link{Raw: raw, URL: u, Class: ClassInvite, InviteCode: pathCode(u.Path)}
	}

	if host == webHost || host == legacyHost {
		// discord.com/invite/<code> is the long form of an invite.
		if code, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), "invite/"); ok && code != "" {
			return Link{Raw: raw, URL: u, Class: ClassInvite, InviteCode: pathCode(code)}
		}
		return Link{Raw: raw, URL: u, Class: ClassSelf}
	}

	return Link{Raw: raw, URL: u, Class: ClassExternal}
}

// pathCode strips path separators from an invite path, leaving the bare
// code.
func pathCode(path string) string {
	return strings.ReplaceAll(path, "/", "")
}

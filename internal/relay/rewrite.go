package relay

import (
	"regexp"
	"strings"
)

// brokenLinkRe matches corrupted mention tokens of the shape
// "scheme://@token". Telegram clients render these as broken hyperlinks,
// they carry no information worth relaying.
var brokenLinkRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.-]*://@[^\s]+`)

// ctaArrowRe locates the call-to-action segment of a line: an optional
// lead-in word ("DM", "contact", ...) followed by an arrow glyph.
var ctaArrowRe = regexp.MustCompile(`(?i)(?:\b(?:dm|pm|contact|message)\s+(?:me\s+|us\s+)?)?(?:👉|➡️|⇒|→|►)`)

// rule is one ordered step of the rewrite. The order is part of the
// contract: broken links are stripped before marker detection, and the
// footer rewrite always runs last.
type rule struct {
	name  string
	apply func(string) string
}

// Rewriter normalizes self-promotion markers in outbound text. When the
// configured handle (plain @mention or t.me deep link) appears in a
// post, the contact call-to-action line is replaced with one canonical
// footer; posts without the marker pass through unchanged.
type Rewriter struct {
	handle   string
	deepLink string // "t.me/<handle>", lowercase
	link     string
	footer   string
	markerRe *regexp.Regexp
	rules    []rule
}

// RewriterConfig configures the marker and the canonical footer.
type RewriterConfig struct {
	Handle      string // promo handle, with or without leading @
	ContactTag  string // left side of the footer (default "@<handle>")
	ContactLink string // right side of the footer (default "https://t.me/<handle>")
}

// NewRewriter builds the ordered rule list for the given config. With
// an empty handle only the broken-link strip applies.
func NewRewriter(cfg RewriterConfig) *Rewriter {
	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.Handle), "@"))
	r := &Rewriter{handle: handle}
	r.rules = append(r.rules, rule{name: "strip-broken-links", apply: stripBrokenLinks})
	if handle == "" {
		return r
	}

	tag := cfg.ContactTag
	if tag == "" {
		tag = "@" + handle
	}
	r.link = cfg.ContactLink
	if r.link == "" {
		r.link = "https://t.me/" + handle
	}
	r.deepLink = "t.me/" + handle
	r.footer = tag + " • " + r.link
	r.markerRe = regexp.MustCompile(`(?i)(?:^|\W)@?` + regexp.QuoteMeta(handle) + `(?:\W|$)`)
	r.rules = append(r.rules, rule{name: "rewrite-footer", apply: r.rewriteFooter})
	return r
}

// Rewrite applies the rule set in order. Pure function: same input
// always yields the same output, and the result is a fixed point
// (rewriting twice equals rewriting once).
func (r *Rewriter) Rewrite(text string) string {
	if text == "" {
		return text
	}
	for _, rl := range r.rules {
		text = rl.apply(text)
	}
	return text
}

// Footer returns the canonical contact footer, empty if no handle is
// configured.
func (r *Rewriter) Footer() string { return r.footer }

func stripBrokenLinks(text string) string {
	if !strings.Contains(text, "://@") {
		return text
	}
	// The token pattern stops at whitespace, so surrounding line breaks
	// survive the removal.
	return brokenLinkRe.ReplaceAllString(text, "")
}

func (r *Rewriter) hasMarker(text string) bool {
	if r.markerRe == nil {
		return false
	}
	if r.markerRe.MatchString(text) {
		return true
	}
	return strings.Contains(strings.ToLower(text), r.deepLink)
}

// rewriteFooter replaces the first contact call-to-action line with the
// canonical footer and deletes any further ones; when no such line
// exists the footer is appended as a trailing block. Lines are CTA
// lines if they carry an arrow glyph or the contact deep link. A plain
// @mention elsewhere in the body triggers the marker but is left in
// place.
func (r *Rewriter) rewriteFooter(text string) string {
	if !r.hasMarker(text) {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+2)
	replaced := false
	for _, line := range lines {
		loc := ctaArrowRe.FindStringIndex(line)
		if loc == nil && !r.isContactLine(line) {
			out = append(out, line)
			continue
		}
		if replaced {
			continue // drop duplicate call-to-action lines
		}
		replaced = true
		if loc != nil {
			// Keep whatever precedes the call-to-action on the same line.
			if prefix := strings.TrimRight(line[:loc[0]], " \t"); prefix != "" {
				out = append(out, prefix)
			}
		}
		out = append(out, r.footer)
	}

	if !replaced {
		if len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, r.footer)
	}
	return strings.Join(out, "\n")
}

func (r *Rewriter) isContactLine(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, r.deepLink) ||
		strings.Contains(l, strings.ToLower(r.link)) ||
		strings.Contains(line, r.footer)
}

package relay

import (
	"strings"
	"testing"
)

func testRewriter() *Rewriter {
	return NewRewriter(RewriterConfig{Handle: "oldhandle"})
}

func TestRewrite_IdentityWithoutMarker(t *testing.T) {
	r := testRewriter()
	inputs := []string{
		"just a normal post",
		"multi\nline\npost",
		"mentions @someoneelse but not the promo handle",
		"has an arrow 👉 but no marker at all",
	}
	for _, in := range inputs {
		if got := r.Rewrite(in); got != in {
			t.Errorf("Rewrite(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestRewrite_EmptyInput(t *testing.T) {
	r := testRewriter()
	if got := r.Rewrite(""); got != "" {
		t.Errorf("Rewrite of empty text = %q, want empty", got)
	}
}

func TestRewrite_ReplacesCallToActionLine(t *testing.T) {
	r := testRewriter()
	in := "Great pick today! DM 👉 @oldhandle\n\nmore text"
	want := "Great pick today!\n@oldhandle • https://t.me/oldhandle\n\nmore text"
	if got := r.Rewrite(in); got != want {
		t.Errorf("Rewrite(%q)\n got %q\nwant %q", in, got, want)
	}
}

func TestRewrite_ReplacesDeepLinkLine(t *testing.T) {
	r := testRewriter()
	in := "signals daily\n\njoin: https://t.me/oldhandle now"
	want := "signals daily\n\n@oldhandle • https://t.me/oldhandle"
	if got := r.Rewrite(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_AppendsFooterWhenNoCTALine(t *testing.T) {
	r := testRewriter()
	in := "big win thanks to @oldhandle today"
	want := "big win thanks to @oldhandle today\n\n@oldhandle • https://t.me/oldhandle"
	if got := r.Rewrite(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_AppendKeepsExistingTrailingBlank(t *testing.T) {
	r := testRewriter()
	in := "prices up @oldhandle\n"
	got := r.Rewrite(in)
	want := "prices up @oldhandle\n\n@oldhandle • https://t.me/oldhandle"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_CollapsesDuplicateCTALines(t *testing.T) {
	r := testRewriter()
	in := "👉 @oldhandle\n👉 t.me/oldhandle\nbody"
	got := r.Rewrite(in)
	if count := strings.Count(got, r.Footer()); count != 1 {
		t.Fatalf("footer appears %d times in %q, want exactly 1", count, got)
	}
	if !strings.Contains(got, "body") {
		t.Errorf("body line lost: %q", got)
	}
}

func TestRewrite_CaseInsensitiveMarker(t *testing.T) {
	r := testRewriter()
	got := r.Rewrite("DM 👉 @OLDHANDLE")
	if got != r.Footer() {
		t.Errorf("got %q, want %q", got, r.Footer())
	}
}

func TestRewrite_MarkerMustBeWholeToken(t *testing.T) {
	r := testRewriter()
	in := "talking about @oldhandlexl here"
	if got := r.Rewrite(in); got != in {
		t.Errorf("partial token should not trigger the footer, got %q", got)
	}
}

func TestRewrite_StripsBrokenLinkTokens(t *testing.T) {
	r := testRewriter()
	in := "check https://@somebody\nnext line"
	want := "check \nnext line"
	if got := r.Rewrite(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_StripRunsBeforeMarkerDetection(t *testing.T) {
	r := testRewriter()
	// The only occurrence of the handle is inside a corrupted link
	// token; after stripping there is no marker left, so no footer.
	in := "promo ftp://@oldhandle only"
	got := r.Rewrite(in)
	if strings.Contains(got, r.Footer()) {
		t.Errorf("footer injected from a stripped token: %q", got)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	r := testRewriter()
	inputs := []string{
		"Great pick today! DM 👉 @oldhandle\n\nmore text",
		"big win thanks to @oldhandle today",
		"signals daily\n\njoin: https://t.me/oldhandle now",
		"👉 @oldhandle\n👉 t.me/oldhandle\nbody",
		"no marker here",
		"",
	}
	for _, in := range inputs {
		once := r.Rewrite(in)
		twice := r.Rewrite(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once %q\ntwice %q", in, once, twice)
		}
	}
}

func TestRewrite_CustomTagAndLink(t *testing.T) {
	r := NewRewriter(RewriterConfig{
		Handle:      "splitthepicks",
		ContactTag:  "SplitThePicks",
		ContactLink: "https://t.me/splitthepicks",
	})
	got := r.Rewrite("DM 👉 @splitthepicks for entry")
	want := "SplitThePicks • https://t.me/splitthepicks"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_NoHandleConfigured(t *testing.T) {
	r := NewRewriter(RewriterConfig{})
	in := "anything 👉 @whatever"
	if got := r.Rewrite(in); got != in {
		t.Errorf("without a handle the rewrite must be identity, got %q", got)
	}
	if r.Footer() != "" {
		t.Errorf("footer should be empty without a handle, got %q", r.Footer())
	}
}

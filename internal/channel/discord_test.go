package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubResolver struct{ err error }

func (s *stubResolver) Resolve(_ context.Context, fileID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://files.example/" + fileID, nil
}

type stubFetcher struct{ err error }

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("bytes:" + url[strings.LastIndex(url, "/")+1:]), nil
}

// webhookRecorder captures everything the forwarder sends.
type webhookRecorder struct {
	mu        sync.Mutex
	requests  int
	params    discordgo.WebhookParams
	fileNames []string
	status    int
}

func (rec *webhookRecorder) handler(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.requests++

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.Unmarshal([]byte(r.MultipartForm.Value["payload_json"][0]), &rec.params)
		for name := range r.MultipartForm.File {
			rec.fileNames = append(rec.fileNames, r.MultipartForm.File[name][0].Filename)
		}
	} else {
		json.NewDecoder(r.Body).Decode(&rec.params)
	}

	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func newTestForwarder(t *testing.T, rec *webhookRecorder, maxLen int) (*DiscordWebhook, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)

	fwd, err := NewDiscordWebhook(DiscordWebhookConfig{
		WebhookURL:       srv.URL + "/api/webhooks/123456/tok-en",
		MaxContentLength: maxLen,
		Resolver:         &stubResolver{},
		Fetcher:          &stubFetcher{},
		Logger:           testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return fwd, srv
}

func TestForward_OneMultipartRequestCarriesAllFiles(t *testing.T) {
	rec := &webhookRecorder{}
	fwd, _ := newTestForwarder(t, rec, 0)

	unit := domain.OutboundUnit{
		UnitID:  "u1",
		Content: "three photos",
		Files: []domain.MediaRef{
			{FileID: "a", Filename: "photo_1.jpg", Kind: domain.MediaPhoto},
			{FileID: "b", Filename: "photo_2.jpg", Kind: domain.MediaPhoto},
			{FileID: "c", Filename: "clip.mp4", Kind: domain.MediaVideo},
		},
	}
	if err := fwd.Forward(context.Background(), unit); err != nil {
		t.Fatal(err)
	}

	if rec.requests != 1 {
		t.Fatalf("requests = %d, want exactly 1 for the whole unit", rec.requests)
	}
	if rec.params.Content != "three photos" {
		t.Errorf("content = %q", rec.params.Content)
	}
	if len(rec.fileNames) != 3 {
		t.Fatalf("file parts = %d, want 3", len(rec.fileNames))
	}
	names := strings.Join(rec.fileNames, ",")
	for _, want := range []string{"photo_1.jpg", "photo_2.jpg", "clip.mp4"} {
		if !strings.Contains(names, want) {
			t.Errorf("missing file %s in %s", want, names)
		}
	}
}

func TestForward_TextOnlyGoesAsJSON(t *testing.T) {
	rec := &webhookRecorder{}
	fwd, _ := newTestForwarder(t, rec, 0)

	if err := fwd.Forward(context.Background(), domain.OutboundUnit{Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if rec.params.Content != "hi" {
		t.Errorf("content = %q, want hi", rec.params.Content)
	}
	if len(rec.fileNames) != 0 {
		t.Errorf("unexpected file parts: %v", rec.fileNames)
	}
}

func TestForward_TruncatesContent(t *testing.T) {
	rec := &webhookRecorder{}
	fwd, _ := newTestForwarder(t, rec, 20)

	long := strings.Repeat("x", 50)
	if err := fwd.Forward(context.Background(), domain.OutboundUnit{Content: long}); err != nil {
		t.Fatal(err)
	}
	if len(rec.params.Content) != 20 {
		t.Errorf("content length = %d, want 20", len(rec.params.Content))
	}
}

func TestForward_Non2xxIsDeliveryError(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusTooManyRequests}
	fwd, _ := newTestForwarder(t, rec, 0)

	err := fwd.Forward(context.Background(), domain.OutboundUnit{Content: "x"})
	var delErr *domain.DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if delErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", delErr.Status)
	}
	if rec.requests != 1 {
		t.Errorf("requests = %d: fire-once means no retry", rec.requests)
	}
}

func TestForward_ResolutionFailureAbortsBeforeRequest(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)

	resErr := &domain.ResolutionError{FileID: "gone", Err: errors.New("no path")}
	fwd, err := NewDiscordWebhook(DiscordWebhookConfig{
		WebhookURL: srv.URL + "/api/webhooks/1/t",
		Resolver:   &stubResolver{err: resErr},
		Fetcher:    &stubFetcher{},
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	unit := domain.OutboundUnit{Files: []domain.MediaRef{{FileID: "gone", Filename: "x.jpg"}}}
	ferr := fwd.Forward(context.Background(), unit)
	var got *domain.ResolutionError
	if !errors.As(ferr, &got) {
		t.Fatalf("expected ResolutionError, got %v", ferr)
	}
	if rec.requests != 0 {
		t.Errorf("requests = %d, want 0 when resolution fails", rec.requests)
	}
}

func TestForward_FetchFailureAbortsDelivery(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)

	fwd, err := NewDiscordWebhook(DiscordWebhookConfig{
		WebhookURL: srv.URL + "/api/webhooks/1/t",
		Resolver:   &stubResolver{},
		Fetcher:    &stubFetcher{err: &domain.FetchError{Status: 404}},
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	unit := domain.OutboundUnit{Files: []domain.MediaRef{{FileID: "a", Filename: "x.jpg"}}}
	ferr := fwd.Forward(context.Background(), unit)
	var got *domain.FetchError
	if !errors.As(ferr, &got) {
		t.Fatalf("expected FetchError, got %v", ferr)
	}
	if rec.requests != 0 {
		t.Errorf("requests = %d, want 0 when a fetch fails", rec.requests)
	}
}

func TestValidateWebhookURL(t *testing.T) {
	good := []string{
		"https://discord.com/api/webhooks/123/token",
		"https://ptb.discord.com/api/webhooks/123/token",
		"http://127.0.0.1:9999/api/webhooks/1/t",
	}
	for _, u := range good {
		if err := validateWebhookURL(u); err != nil {
			t.Errorf("%s should validate: %v", u, err)
		}
	}

	bad := []string{
		"",
		"discord.com/api/webhooks/123/token", // no scheme
		"https://discord.com/",
	}
	for _, u := range bad {
		if err := validateWebhookURL(u); err == nil {
			t.Errorf("%s should be rejected", u)
		}
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := "héllo wörld"
	cut := truncate(s, 2) // é is 2 bytes starting at index 1
	if cut != "h" {
		t.Errorf("truncate split a rune: %q", cut)
	}
	if got := truncate("short", 100); got != "short" {
		t.Errorf("no-op truncate changed the string: %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := []struct {
		ref  domain.MediaRef
		want string
	}{
		{domain.MediaRef{Kind: domain.MediaPhoto, Filename: "a.jpg"}, "image/jpeg"},
		{domain.MediaRef{Kind: domain.MediaVideo, Filename: "a.mp4"}, "video/mp4"},
		{domain.MediaRef{Kind: domain.MediaDocument, Filename: "a.bin"}, "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := contentTypeFor(tc.ref); got != tc.want {
			t.Errorf("contentTypeFor(%s %s) = %q, want %q", tc.ref.Kind, tc.ref.Filename, got, tc.want)
		}
	}
}

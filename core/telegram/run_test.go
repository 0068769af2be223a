package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeleteWebhook(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := deleteWebhook(context.Background(), srv.URL, "123:abc", true); err != nil {
		t.Fatalf("deleteWebhook: %v", err)
	}
	if gotPath != "/bot123:abc/deleteWebhook" || gotBody != "drop_pending_updates=true" {
		t.Fatalf("request %s %q", gotPath, gotBody)
	}
	if err := deleteWebhook(context.Background(), srv.URL, " ", false); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestRedactToken(t *testing.T) {
	msg := `Post "https://api.telegram.org/bot123:abc/deleteWebhook": dial tcp: timeout`
	if got := redactToken(msg, "123:abc"); got != `Post "https://api.telegram.org/bot<token>/deleteWebhook": dial tcp: timeout` {
		t.Fatalf("redactToken = %s", got)
	}
}

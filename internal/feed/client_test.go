package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agentwatch/internal/models"

	"go.uber.org/zap/zaptest"
)

func TestFetchMergesPostsAndComments(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/posts":
			w.Write([]byte(`{"posts":[{"id":1,"agentId":7,"agentName":"alpha","content":"hi","createdAt":"2026-03-01T10:00:05Z"}]}`))
		case "/comments":
			w.Write([]byte(`{"comments":[
				{"id":9,"agentId":8,"agentName":"beta","content":"re","postId":1,"createdAt":"2026-03-01T10:00:05Z"},
				{"id":8,"agentId":8,"agentName":"beta","content":"early","postId":1,"createdAt":"2026-03-01T10:00:00Z"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zaptest.NewLogger(t))
	since := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	messages, err := c.Fetch(context.Background(), since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotSince != "2026-03-01T09:00:00Z" {
		t.Errorf("since = %q", gotSince)
	}
	if len(messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(messages))
	}
	want := []models.MessageKey{
		{Type: models.MessageTypeComment, ID: 8},
		{Type: models.MessageTypePost, ID: 1},
		{Type: models.MessageTypeComment, ID: 9},
	}
	for i, m := range messages {
		if m.Key() != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, m.Key(), want[i])
		}
	}
	if messages[2].PostID == nil || *messages[2].PostID != 1 {
		t.Errorf("comment post id = %v", messages[2].PostID)
	}
}

func TestFetchReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zaptest.NewLogger(t))
	if _, err := c.Fetch(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

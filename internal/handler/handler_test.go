package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentwatch/internal/models"
	"agentwatch/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type busyIngester struct{}

func (busyIngester) Ingest(context.Context, []models.RawMessage) (pipeline.BatchResult, error) {
	return pipeline.BatchResult{}, pipeline.ErrRunInProgress
}

type noDetector struct{}

func (noDetector) RunDetection(context.Context, time.Time) []*models.SuspiciousPattern { return nil }

func TestIngestReturnsConflictWhileRunInProgress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCommandHandler(busyIngester{}, noDetector{}, nil, zaptest.NewLogger(t))
	r := gin.New()
	r.POST("/api/ingest", h.Ingest)
	r.POST("/api/detection/run", h.RunDetection)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`not json`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/detection/run", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"patterns":[]`) {
		t.Fatalf("detection = %d %s", w.Code, w.Body.String())
	}
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph([]models.InteractionEdge{
		{SourceAgentID: 2, TargetAgentID: 1, SourceAgentName: "b", TargetAgentName: "a", InteractionType: models.InteractionReply, Strength: 4},
		{SourceAgentID: 3, TargetAgentID: 1, SourceAgentName: "c", TargetAgentName: "a", InteractionType: models.InteractionReply, Strength: 1},
	})
	if len(g.Nodes) != 3 || len(g.Links) != 2 {
		t.Fatalf("graph = %+v", g)
	}
	if g.Nodes[0] != (models.GraphNode{ID: 1, Name: "a", Value: 5}) {
		t.Errorf("node a = %+v", g.Nodes[0])
	}

	empty := BuildGraph(nil)
	if empty.Nodes == nil || empty.Links == nil {
		t.Errorf("empty graph must serialise as arrays: %+v", empty)
	}
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", 20, true},
		{"limit=5", 5, true},
		{"limit=9999", 500, true},
		{"limit=0", 0, false},
		{"limit=abc", 0, false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, ok := queryInt(c, "limit", 20, 500)
		if got != tt.want || ok != tt.ok {
			t.Errorf("queryInt(%q) = %d, %v; want %d, %v", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

package server

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tgruben-circuit/agentfleet/board"
	"github.com/tgruben-circuit/agentfleet/fleet"
	"github.com/tgruben-circuit/agentfleet/lock"
	"github.com/tgruben-circuit/agentfleet/runtime"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b, err := board.New(t.TempDir())
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	l, err := lock.New(t.TempDir())
	if err != nil {
		t.Fatalf("lock.New: %v", err)
	}
	rt := runtime.New("true")
	f := fleet.New(rt)

	s, err := New(b, l, f, rt, Options{ConfigPath: t.TempDir() + "/fleet.json"})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return s
}

func TestHandleIndexRendersEmptyBoard(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("expected rendered HTML page, got: %s", rec.Body.String())
	}
}

func TestHandleAddTaskThenListedInBoardPartial(t *testing.T) {
	s := newTestServer(t)

	form := strings.NewReader("description=fix+the+thing&priority=5")
	req := httptest.NewRequest("POST", "/tasks", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code >= 300 {
		t.Fatalf("POST /tasks status = %d, body = %s", rec.Code, rec.Body.String())
	}

	tasks, err := s.Board.List(board.StatusOpen)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Description != "fix the thing" {
		t.Fatalf("unexpected tasks after add: %+v", tasks)
	}

	req = httptest.NewRequest("GET", "/partials/board", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "fix the thing") {
		t.Fatalf("board partial missing task: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleAgentRoutesRejectInvalidID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/agents/NOT_VALID!/stop", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePreflightReturnsJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/fleet/preflight", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, body)
	}
	if !strings.Contains(string(body), "\"name\"") {
		t.Fatalf("expected check rows in response, got: %s", body)
	}
}

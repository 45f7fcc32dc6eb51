package server

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// tailLines is the bounded tail size for GET /agents/{id}/logs, per
// spec.md §4.6.
const tailLines = 100

// wsLineTimeout is the per-line read deadline on the follow-mode log
// stream; a container that stops producing output for this long ends the
// stream cleanly.
const wsLineTimeout = 30 * time.Second

// wsLineRateLimit bounds forwarded lines per second; trips send one
// throttling notice and drop the rest of that second's lines.
const wsLineRateLimit = 500

func (s *Server) containerFor(agentID string) (string, bool) {
	entry, ok := s.Fleet.Snapshot()[agentID]
	if !ok || entry.ContainerID == "" {
		return "", false
	}
	return entry.ContainerID, true
}

// handleAgentLogs returns the last tailLines lines from an agent's
// container as a preformatted HTML fragment, ANSI sequences stripped.
func (s *Server) handleAgentLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := validateAgentID(w, r)
	if !ok {
		return
	}
	containerID, ok := s.containerFor(id)
	if !ok {
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}
	out, err := s.Runtime.GetAgentLogs(r.Context(), containerID, tailLines)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<pre>%s</pre>", html.EscapeString(stripANSI(out)))
}

// handleAgentLogsWS upgrades to a websocket and streams live follow-mode
// logs for an agent's container, per spec.md §4.6. Lines are rate-limited
// to wsLineRateLimit/sec; a tripped limit sends one notice and drops the
// rest of that second's lines. The spawned child is killed and waited on
// disconnect or per-line read timeout.
func (s *Server) handleAgentLogsWS(w http.ResponseWriter, r *http.Request) {
	id, ok := validateAgentID(w, r)
	if !ok {
		return
	}
	containerID, ok := s.containerFor(id)
	if !ok {
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Logger.Error("logs ws: accept", "agent", id, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := s.Runtime.FollowLogsCmd(ctx, containerID)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "failed to start log stream")
		return
	}
	if err := cmd.Start(); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to start log stream")
		return
	}
	defer func() {
		cancel()
		_ = cmd.Wait()
	}()

	limiter := rate.NewLimiter(rate.Limit(wsLineRateLimit), wsLineRateLimit)
	throttledThisSecond := false
	secondMark := time.Now().Truncate(time.Second)

	scanner := bufio.NewScanner(stdout)
	lineCh := make(chan string)
	go func() {
		defer close(lineCh)
		for scanner.Scan() {
			select {
			case lineCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lineCh:
			if !ok {
				return
			}
			now := time.Now()
			if now.Truncate(time.Second) != secondMark {
				secondMark = now.Truncate(time.Second)
				throttledThisSecond = false
			}
			if throttledThisSecond {
				continue
			}
			if !limiter.Allow() {
				throttledThisSecond = true
				s.writeWSLine(ctx, conn, "[throttled: rate limit exceeded, dropping lines this second]")
				continue
			}
			s.writeWSLine(ctx, conn, stripANSI(line))
		case <-time.After(wsLineTimeout):
			conn.Close(websocket.StatusNormalClosure, "log stream idle timeout")
			return
		}
	}
}

func (s *Server) writeWSLine(ctx context.Context, conn *websocket.Conn, line string) {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, []byte(line)); err != nil {
		s.Logger.Debug("logs ws: write failed", "error", err)
	}
}

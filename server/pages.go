package server

import (
	"net/http"
	"time"

	"github.com/tgruben-circuit/agentfleet/board"
)

// Stats summarizes task counts and agent activity for the stats partial.
type Stats struct {
	Open         int
	Locked       int
	Done         int
	Failed       int
	Total        int
	Completion   int
	ActiveAgents int
}

func (s *Server) groupedTasks() (map[board.Status][]board.Task, error) {
	tasks, err := s.Board.List("")
	if err != nil {
		return nil, err
	}
	groups := map[board.Status][]board.Task{
		board.StatusOpen:   {},
		board.StatusLocked: {},
		board.StatusDone:   {},
		board.StatusFailed: {},
	}
	for _, t := range tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}
	return groups, nil
}

func (s *Server) computeStats() (Stats, error) {
	groups, err := s.groupedTasks()
	if err != nil {
		return Stats{}, err
	}
	locks, err := s.Lock.List()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Open:   len(groups[board.StatusOpen]),
		Locked: len(groups[board.StatusLocked]),
		Done:   len(groups[board.StatusDone]),
		Failed: len(groups[board.StatusFailed]),
	}
	st.Total = st.Open + st.Locked + st.Done + st.Failed
	if st.Total > 0 {
		st.Completion = st.Done * 100 / st.Total
	}
	for _, lk := range locks {
		if time.Since(lk.LastHeartbeat) < freshHeartbeatWindow {
			st.ActiveAgents++
		}
	}
	return st, nil
}

// indexView is the data model for the full-page template.
type indexView struct {
	Groups     map[board.Status][]board.Task
	Stats      Stats
	Agents     []AgentCard
	Messages   []board.Message
	Fleet      struct{}
	ConfigJSON configView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groupedTasks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats, err := s.computeStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	locks, err := s.Lock.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	messages, err := s.Board.AllMessages(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := indexView{
		Groups:     groups,
		Stats:      stats,
		Agents:     buildAgentCards(s.Fleet.Snapshot(), locks),
		Messages:   messages,
		ConfigJSON: s.loadConfigView(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.page.ExecuteTemplate(w, "layout", data); err != nil {
		s.Logger.Error("render index", "error", err)
	}
}

func (s *Server) handlePartialBoard(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groupedTasks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPartial(w, "board", groups)
}

func (s *Server) handlePartialStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.computeStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPartial(w, "stats", stats)
}

func (s *Server) handlePartialAgents(w http.ResponseWriter, r *http.Request) {
	locks, err := s.Lock.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPartial(w, "agents", buildAgentCards(s.Fleet.Snapshot(), locks))
}

func (s *Server) handlePartialMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.Board.AllMessages(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPartial(w, "messages", messages)
}

func (s *Server) handlePartialFleet(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, "fleet", struct{}{})
}

func (s *Server) renderPartial(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.page.ExecuteTemplate(w, name, data); err != nil {
		s.Logger.Error("render partial", "partial", name, "error", err)
	}
}

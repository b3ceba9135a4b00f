package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"northpole/internal/domain"
	"northpole/internal/metrics"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string             `json:"type"` // status or log
	Message string             `json:"message"`
	Event   *domain.BuildEvent `json:"event,omitempty"`
	RunID   string             `json:"run_id,omitempty"`
}

// simulationStream runs an assignment pass, then streams the build
// simulation to the client one message per event. Closing the socket
// cancels the simulation.
func (s *Server) simulationStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the client going away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	res := s.runPass(r)
	if err := conn.WriteJSON(wsMessage{
		Type:    "status",
		Message: fmt.Sprintf("Simulation started: %d assigned, %d unassigned", len(res.Assignments), len(res.Unassigned)),
	}); err != nil {
		return
	}

	started := time.Now()
	events := make(chan domain.BuildEvent, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.pool.Run(ctx, s.ws.Elves(), events)
		close(events)
	}()

	var history []domain.BuildEvent
	for ev := range events {
		history = append(history, ev)
		metrics.ObserveEvent(ev)
		if err := conn.WriteJSON(wsMessage{Type: "log", Message: describe(ev), Event: &ev}); err != nil {
			cancel()
		}
	}
	runErr := <-done
	runID := s.recordRun(r, started, history, runErr)

	final := wsMessage{Type: "status", Message: "Simulation finished", RunID: runID}
	if runErr != nil {
		log.Warn().Err(runErr).Str("run_id", runID).Msg("simulation stream ended early")
		final.Message = "Simulation stopped: " + runErr.Error()
	}
	_ = conn.WriteJSON(final)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func describe(ev domain.BuildEvent) string {
	if ev.Kind == domain.EventStart {
		return fmt.Sprintf("%s building %s", ev.Elf, ev.Toy)
	}
	return fmt.Sprintf("%s finished %s", ev.Elf, ev.Toy)
}

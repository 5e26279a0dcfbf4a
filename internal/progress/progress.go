// Package progress implements a gnet-based broadcast server for pipeline
// progress events (spec.md §6 "Progress events"). The teacher uses gnet's
// event-engine shape exclusively as an outbound client talking to a Davis
// station; here the same BuiltinEventEngine/OnBoot/OnOpen/OnTraffic/OnClose
// shape runs in server mode, fanning JSON progress events out to every
// connected UI client instead of parsing an inbound weather protocol.
package progress

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/panjf2000/gnet/v2"

	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
)

// Event is the wire shape of one progress broadcast (spec.md §6).
type Event struct {
	RunID             string  `json:"run_id"`
	Progress          float64 `json:"progress"`
	CurrentStep       string  `json:"current_step"`
	TotalSteps        int     `json:"total_steps"`
	CurrentStepNumber int     `json:"current_step_number"`
}

// Server is a gnet event engine that holds open connections and fans out
// newline-delimited JSON progress events to all of them.
type Server struct {
	gnet.BuiltinEventEngine

	mu    sync.Mutex
	conns map[gnet.Conn]struct{}
	eng   gnet.Engine
}

// NewServer creates a progress broadcast server. Call Run to start serving.
func NewServer() *Server {
	return &Server{conns: make(map[gnet.Conn]struct{})}
}

// OnBoot records the engine handle once the event loop is up. Emit does
// not use it; it writes through each connection's AsyncWrite.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.eng = eng
	log.Info("progress broadcast server started")
	return gnet.None
}

// OnOpen registers a newly connected UI client.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	return nil, gnet.None
}

// OnClose deregisters a disconnected client.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	return gnet.None
}

// OnTraffic discards anything a client sends; this is a broadcast-only
// channel, not a request/response protocol.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	_, _ = c.Next(-1)
	return gnet.None
}

// Run starts serving on addr (e.g. "tcp://:9191") until ctx-driven shutdown
// is requested by the caller via gnet.Stop.
func (s *Server) Run(addr string) error {
	return gnet.Run(s, addr, gnet.WithMulticore(true), gnet.WithReusePort(true))
}

// Emit implements pipeline.ProgressSink: it serializes one progress event
// as a newline-delimited JSON frame and writes it to every open connection.
func (s *Server) Emit(p pipeline.Progress) {
	ev := Event{
		RunID:             p.RunID,
		Progress:          p.ProgressPct,
		CurrentStep:       p.CurrentStep,
		TotalSteps:        p.TotalSteps,
		CurrentStepNumber: p.CurrentStepNumber,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warnf("progress: failed to marshal event: %v", err)
		return
	}
	frame := append(bytes.TrimSpace(data), '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		// Emit runs on the pipeline goroutine, outside gnet's event loop, so
		// writes must go through AsyncWrite rather than Conn.Write directly.
		if err := c.AsyncWrite(frame, nil); err != nil {
			log.Debugf("progress: dropping client write error: %v", err)
		}
	}
}

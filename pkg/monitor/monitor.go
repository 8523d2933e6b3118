// Package monitor serves the robot's link transitions and dispatched
// routines over HTTP: GET /status for a snapshot, GET /events for a
// websocket stream.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
)

// Event types.
const (
	EventLink     = "link"
	EventDispatch = "dispatch"
)

// Event is one message on the stream.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// LinkData describes a link transition.
type LinkData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Session string `json:"session,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// DispatchData describes a routine the robot ran.
type DispatchData struct {
	Command string `json:"command"`
	Routine string `json:"routine"`
	TookMS  int64  `json:"took_ms"`
	Error   string `json:"error,omitempty"`
}

// Status is the /status response.
type Status struct {
	State       string    `json:"state"`
	Since       time.Time `json:"since"`
	Session     string    `json:"session,omitempty"`
	Dispatched  uint64    `json:"dispatched"`
	Failed      uint64    `json:"failed"`
	LastRoutine string    `json:"last_routine,omitempty"`
	LED         bool      `json:"led"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

const clientBuffer = 32

// Server fans events out to websocket clients. A client whose buffer is
// full is dropped. It also stands in for the robot's heartbeat LED.
type Server struct {
	tracker *link.Tracker
	log     *zap.Logger

	mu         sync.Mutex
	clients    map[chan Event]struct{}
	dispatched uint64
	failed     uint64
	last       string
	led        bool
}

func New(tracker *link.Tracker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		tracker: tracker,
		log:     log.Named("monitor"),
		clients: make(map[chan Event]struct{}),
	}
}

// Publish sends ev to every client. Clients that are a full buffer behind
// are unsubscribed; their channel is closed.
func (s *Server) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- ev:
		default:
			delete(s.clients, ch)
			close(ch)
			s.log.Warn("dropping slow client")
		}
	}
}

// Subscribe registers a client channel. The channel is closed by the
// returned func or when the client falls behind.
func (s *Server) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, clientBuffer)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.clients[ch]; ok {
			delete(s.clients, ch)
			close(ch)
		}
	}
}

// Set implements status.LED.
func (s *Server) Set(on bool) {
	s.mu.Lock()
	s.led = on
	s.mu.Unlock()
}

// Dispatched implements dispatch.Observer.
func (s *Server) Dispatched(req command.MotionRequest, took time.Duration, err error) {
	data := DispatchData{
		Command: req.Command.String(),
		Routine: req.Routine,
		TookMS:  took.Milliseconds(),
	}
	s.mu.Lock()
	s.dispatched++
	s.last = req.Routine
	if err != nil {
		s.failed++
		data.Error = err.Error()
	}
	s.mu.Unlock()

	s.Publish(Event{Type: EventDispatch, At: req.IssuedAt, Data: data})
}

// Follow forwards tracker transitions until ctx is cancelled.
func (s *Server) Follow(ctx context.Context) error {
	ch, unsubscribe := s.tracker.Subscribe(16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr := <-ch:
			s.Publish(Event{Type: EventLink, At: tr.At, Data: LinkData{
				From:    tr.From.String(),
				To:      tr.To.String(),
				Session: tr.Session,
				Reason:  tr.Reason,
			}})
		}
	}
}

// Status returns the current snapshot.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.tracker.State().String(),
		Since:       s.tracker.Since(),
		Session:     s.tracker.Session(),
		Dispatched:  s.dispatched,
		Failed:      s.failed,
		LastRoutine: s.last,
		LED:         s.led,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("GET /events", s.events)
	return withLogging(s.log, mux)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.log.Info("monitor listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	// Clients send nothing; reading surfaces their close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			s.log.Debug("ws client gone")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("ws write", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

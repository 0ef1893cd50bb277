package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
	"github.com/abir2776/extract-message-whatsapp/internal/scanner"
	"github.com/abir2776/extract-message-whatsapp/internal/status"
	"github.com/abir2776/extract-message-whatsapp/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the read-only HTTP inspection surface of a running daemon:
// health, scan progress and the harvested rows.
type Server struct {
	httpServer *http.Server
	db         *store.DB
	machine    *status.Machine
	session    string
	logger     *zap.Logger

	mu        sync.RWMutex
	lastScan  *scanner.ScanStats
	unsubScan func()
}

// NewServer creates an HTTP server bound to addr. It subscribes to scan
// events so /status can report the latest scan's progress.
func NewServer(addr, sessionName string, db *store.DB, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Server {
	s := &Server{
		db:      db,
		machine: machine,
		session: sessionName,
		logger:  logger,
	}

	events, unsub := b.Subscribe("scan.", 16)
	s.unsubScan = unsub
	go func() {
		for evt := range events {
			stats, ok := evt.Payload.(scanner.ScanStats)
			if !ok {
				continue
			}
			s.mu.Lock()
			s.lastScan = &stats
			s.mu.Unlock()
		}
	}()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/contacts", s.handleContacts).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP requests. Blocks until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	s.unsubScan()
	_ = s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Session  string             `json:"session"`
	State    status.State       `json:"state"`
	Total    int64              `json:"total_contacts"`
	Verified int64              `json:"verified_contacts"`
	LastScan *scanner.ScanStats `json:"last_scan,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, verified, err := s.db.Counts(r.Context())
	if err != nil {
		s.logger.Error("count contacts", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Session:  s.session,
		State:    s.machine.Current(),
		Total:    total,
		Verified: verified,
	}
	s.mu.RLock()
	resp.LastScan = s.lastScan
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

// ContactResponse is one row of the /contacts payload.
type ContactResponse struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	ChatName  string    `json:"chat_name,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.db.ListContacts(r.Context())
	if err != nil {
		s.logger.Error("list contacts", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ContactResponse{
			ID:        c.ID,
			Phone:     c.Phone,
			Email:     c.Email,
			ChatName:  c.ChatName,
			Verified:  c.Verified,
			CreatedAt: c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

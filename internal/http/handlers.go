package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/blood-matching/internal/compat"
	"github.com/example/blood-matching/internal/config"
	"github.com/example/blood-matching/internal/dispatch"
	"github.com/example/blood-matching/internal/donors"
	"github.com/example/blood-matching/internal/ingest"
	"github.com/example/blood-matching/internal/matcher"
	"github.com/example/blood-matching/internal/models"
	"github.com/example/blood-matching/internal/observability"
	"github.com/example/blood-matching/internal/stats"
	"github.com/example/blood-matching/internal/storage"
)

type Server struct {
	Store   storage.Store
	Donors  donors.Directory
	Matcher *matcher.Service
	Stats   *stats.Service
	Kafka   *ingest.KafkaProducer
	WSReg   *dispatch.WSRegistry
	mux     *mux.Router
	logger  *slog.Logger
}

// New wires the engine from config with sensible fallbacks: Redis and
// Postgres when configured, in-memory otherwise.
func New(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var dir donors.Directory
	if cfg.RedisAddr != "" {
		dir = donors.NewRedisDirectory(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		dir = donors.NewIndex()
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	wsreg := dispatch.NewWSRegistry()
	notifiers := []dispatch.Notifier{wsreg}
	if cfg.WebhookEndpoint != "" {
		notifiers = append(notifiers, dispatch.NewWebhookNotifier(cfg.WebhookEndpoint, ""))
	}

	m := &matcher.Service{
		Store:    store,
		Donors:   dir,
		Notifier: fanNotifier(notifiers),
		Logger:   logger,
		Deadline: cfg.MatchDeadline,
	}
	s := &Server{
		Store:   store,
		Donors:  dir,
		Matcher: m,
		Stats:   &stats.Service{Store: store, Window: cfg.StatsWindow},
		Kafka:   kp,
		WSReg:   wsreg,
		mux:     mux.NewRouter(),
		logger:  logger,
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

// fanNotifier delivers to every notifier, returning the first error.
type fanNotifier []dispatch.Notifier

func (f fanNotifier) Notify(hospitalID string, n dispatch.MatchNotice) error {
	var first error
	for _, d := range f {
		if err := d.Notify(hospitalID, n); err != nil && first == nil && !errors.Is(err, dispatch.ErrNoSession) {
			first = err
		}
	}
	return first
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/requests", s.handleCreateRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{request_id}", s.handleGetRequest).Methods("GET")
	s.mux.HandleFunc("/api/v1/requests/{request_id}/match", s.handleRunMatching).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{request_id}/select", s.handleSelectMatch).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{request_id}/cancel", s.handleCancelRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/matching/stats", s.handleStats).Methods("GET")
	s.mux.HandleFunc("/api/v1/compatibility/{blood_type}", s.handleCompatibility).Methods("GET")
	s.mux.HandleFunc("/internal/donors", s.handleDonorUpsert).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{hospital_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.BloodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.BloodType.Valid() {
		http.Error(w, "invalid blood type", http.StatusBadRequest)
		return
	}
	if req.UnitsNeeded <= 0 {
		req.UnitsNeeded = 1
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.State = models.StatePending
	req.MatchedDonorID = ""
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	if err := s.Store.CreateRequest(r.Context(), &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Store.GetRequest(r.Context(), mux.Vars(r)["request_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleRunMatching(w http.ResponseWriter, r *http.Request) {
	res, err := s.Matcher.RunMatching(r.Context(), mux.Vars(r)["request_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSelectMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DonorID string `json:"donor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DonorID == "" {
		http.Error(w, "donor_id required", http.StatusBadRequest)
		return
	}
	donation, err := s.Matcher.SelectMatch(r.Context(), mux.Vars(r)["request_id"], body.DonorID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, donation)
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.CancelRequest(r.Context(), mux.Vars(r)["request_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Stats.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleCompatibility serves the display-level ABO/Rh matrix. Scoring
// does not use it; see the compat package.
func (s *Server) handleCompatibility(w http.ResponseWriter, r *http.Request) {
	bt := models.BloodType(mux.Vars(r)["blood_type"])
	if !bt.Valid() {
		http.Error(w, "invalid blood type", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"blood_type":        bt,
		"compatible_donors": compat.CompatibleDonors(bt),
	})
}

func (s *Server) handleDonorUpsert(w http.ResponseWriter, r *http.Request) {
	var d models.Donor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d.ID == "" || !d.BloodType.Valid() {
		http.Error(w, "id and valid blood_type required", http.StatusBadRequest)
		return
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishDonorUpdate(d); err != nil {
			s.logger.Warn("kafka publish failed", "donor_id", d.ID, "error", err)
		}
	}
	if err := s.Donors.Upsert(r.Context(), d); err != nil {
		s.writeError(w, r, err)
		return
	}
	// resync the gauge from the directory so re-upserts and
	// availability flips cannot drift it
	if n, err := s.Donors.CountAvailable(r.Context()); err == nil {
		observability.DonorsAvailable.Set(float64(n))
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["hospital_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.WSReg.Add(id, conn)
	// dashboards only receive; the read pump just detects close
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(id, sess)
				_ = conn.Close()
				return
			}
		}
	}()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

package match

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"effects-server/internal/effect"
	"effects-server/internal/journal"
)

// API serves the match management endpoints
type API struct {
	mg  *Manager
	db  *journal.DB
	log *zap.Logger
}

// NewAPI creates the match endpoints. db may be nil.
func NewAPI(mg *Manager, db *journal.DB, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{mg: mg, db: db, log: log.Named("api")}
}

// StatsResponse is the journal view of one match
type StatsResponse struct {
	journal.Stats
	WaveLog []journal.WaveRow `json:"wave_log"`
}

// SetupRoutes registers the /matches endpoints on mux
func (a *API) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /matches", a.handleList)
	mux.HandleFunc("POST /matches", a.handleCreate)
	mux.HandleFunc("GET /matches/{id}", a.handleGet)
	mux.HandleFunc("DELETE /matches/{id}", a.handleDelete)
	mux.HandleFunc("GET /matches/{id}/stats", a.handleStats)
	mux.HandleFunc("POST /matches/{id}/cast", a.handleCast)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.mg.List())
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "arena"
	}
	if len(name) > 64 {
		http.Error(w, "name too long", http.StatusBadRequest)
		return
	}
	m, err := a.mg.Create(name)
	if errors.Is(err, ErrTooManyMatches) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		a.log.Error("create match", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, m.Info())
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*Match, bool) {
	m, err := a.mg.Lookup(r.PathValue("id"))
	if err != nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	m, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Info())
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	m, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := a.mg.Remove(r.Context(), m.ID); err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		a.log.Error("remove match", zap.String("id", m.ID.String()), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	m, ok := a.lookup(w, r)
	if !ok {
		return
	}
	stats, err := a.db.MatchStats(m.ID)
	if journal.IsNotFound(err) {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Error("match stats", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	waves, err := a.db.Waves(m.ID)
	if err != nil {
		a.log.Error("match waves", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, WaveLog: waves})
}

func (a *API) handleCast(w http.ResponseWriter, r *http.Request) {
	m, ok := a.lookup(w, r)
	if !ok {
		return
	}
	hero := 0
	if v := r.URL.Query().Get("hero"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(m.Heroes()) {
			http.Error(w, "bad hero", http.StatusBadRequest)
			return
		}
		hero = n
	}
	ability := r.URL.Query().Get("ability")

	var res CastResult
	var castErr error
	err := m.Do(r.Context(), func() {
		res, castErr = m.Cast(m.Heroes()[hero], ability)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	switch {
	case castErr == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(castErr, ErrUnknownAbility):
		http.Error(w, castErr.Error(), http.StatusBadRequest)
	case errors.Is(castErr, ErrOnCooldown), errors.Is(castErr, ErrUnknownCaster),
		errors.Is(castErr, effect.ErrNoCandidate), errors.Is(castErr, effect.ErrEmptyPool):
		http.Error(w, castErr.Error(), http.StatusConflict)
	default:
		a.log.Warn("cast failed", zap.String("ability", ability), zap.Error(castErr))
		http.Error(w, castErr.Error(), http.StatusInternalServerError)
	}
}

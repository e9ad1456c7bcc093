package replication

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Feed is the replication side of one running match
type Feed interface {
	Hub() *Hub
	// Snapshot returns the encoded full state for a joining observer
	Snapshot() ([]byte, error)
}

// Directory finds the feed of a match by id
type Directory interface {
	Feed(match string) (Feed, bool)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server serves observer tokens and the websocket feed
type Server struct {
	auth    *Auth
	dir     Directory
	limiter *Limiter
	log     *zap.Logger
}

// NewServer creates the observer endpoints
func NewServer(auth *Auth, dir Directory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, dir: dir, limiter: NewLimiter(), log: log.Named("observers")}
}

// Limiter returns the connection limiter
func (s *Server) Limiter() *Limiter { return s.limiter }

// SetupRoutes registers /token and /ws on mux
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /token", s.handleToken)
	mux.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	match := r.URL.Query().Get("match")
	if _, ok := s.dir.Feed(match); !ok {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	token, err := s.auth.Issue(match)
	if err != nil {
		s.log.Error("issue token", zap.String("match", match), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token, "match": match})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	match, err := s.auth.Validate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	feed, ok := s.dir.Feed(match)
	if !ok {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	ip := extractIP(r)
	if !s.limiter.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.String("remote", ip), zap.Error(err))
		return
	}
	s.limiter.TrackConnect(ip)

	hub := feed.Hub()
	client := NewClient(hub, conn, ip, s.log)
	if err := hub.Join(client, feed.Snapshot); err != nil {
		s.log.Warn("observer join failed", zap.String("match", match), zap.Error(err))
		s.limiter.TrackDisconnect(ip)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	s.log.Info("observer connected", zap.String("match", match), zap.String("remote", ip))

	go client.WritePump()
	go client.ReadPump(func() { s.limiter.TrackDisconnect(ip) })
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jupiterclapton/relation-service/internal/auth"
	"github.com/jupiterclapton/relation-service/internal/core/domain"
	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// Server est l'adapter primaire HTTP : il traduit requêtes/réponses JSON et
// mappe la taxonomie d'erreurs du domaine vers les codes HTTP. Aucune
// logique métier ici.
type Server struct {
	relations ports.RelationshipService
	discovery ports.DiscoveryService
	store     ports.UserStore
	graph     ports.GraphProjection
	notifier  ports.NotificationFeed
}

func NewServer(
	relations ports.RelationshipService,
	discovery ports.DiscoveryService,
	store ports.UserStore,
	graph ports.GraphProjection,
	notifier ports.NotificationFeed,
) *Server {
	return &Server{
		relations: relations,
		discovery: discovery,
		store:     store,
		graph:     graph,
		notifier:  notifier,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/relations/{targetID}/toggle", s.handleToggleFollow)
	mux.HandleFunc("GET /v1/relations/{targetID}", s.handleRelationStatus)
	mux.HandleFunc("GET /v1/users", s.handleListUsers)
	mux.HandleFunc("PUT /v1/discovery/query", s.handleDiscoveryQuery)
	mux.HandleFunc("GET /v1/discovery", s.handleDiscoverySnapshot)
	mux.HandleFunc("GET /v1/users/{id}/suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /v1/notifications", s.handleNotifications)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// --- HANDLERS ---

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	following, err := s.relations.ToggleFollow(r.Context(), currentUserID, r.PathValue("targetID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"following": following})
}

func (s *Server) handleRelationStatus(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	status, err := s.relations.RelationStatus(r.Context(), currentUserID, r.PathValue("targetID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"isFollowing":  status.IsFollowing,
		"isFollowedBy": status.IsFollowedBy,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	actor, err := s.store.GetByID(r.Context(), currentUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := s.store.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]userCardJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toCardJSON(u, actor.IsFollowing(u.ID)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleDiscoveryQuery(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	var body struct {
		Q string `json:"q"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.discovery.SetQuery(currentUserID, body.Q)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDiscoverySnapshot(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	view, err := s.discovery.Snapshot(r.Context(), currentUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	cards := make([]userCardJSON, 0, len(view.Cards))
	for _, c := range view.Cards {
		cards = append(cards, toCardJSON(c.User, c.IsFollowing))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":        view.State,
		"cards":        cards,
		"searchFailed": view.SearchFailed,
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	suggestions, err := s.graph.SuggestedCreators(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(suggestions))
	for _, sug := range suggestions {
		out = append(out, map[string]any{"userId": sug.UserID, "mutual": sug.Mutual})
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	currentUserID := auth.ForContext(r.Context())
	if currentUserID == "" {
		writeError(w, domain.ErrUnauthenticated)
		return
	}

	items, err := s.notifier.List(r.Context(), currentUserID, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, n := range items {
		out = append(out, map[string]any{"actorId": n.ActorID, "at": n.At})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

// --- MAPPERS & HELPERS ---

type userCardJSON struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"fullName"`
	ImageURL      string `json:"imageUrl"`
	FollowerCount int    `json:"followerCount"`
	IsFollowing   bool   `json:"isFollowing"`
}

func toCardJSON(u *domain.User, isFollowing bool) userCardJSON {
	return userCardJSON{
		ID:            u.ID,
		Username:      u.Username,
		FullName:      u.FullName,
		ImageURL:      u.ImageURL,
		FollowerCount: len(u.FollowerIDs),
		IsFollowing:   isFollowing,
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

// writeError mappe la taxonomie du domaine vers les codes HTTP.
// Conflict et Timeout invitent le client à relire puis retenter lui-même.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	retryable := false

	switch {
	case errors.Is(err, domain.ErrSelfFollow), errors.Is(err, domain.ErrInvalidID):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		retryable = true
	case errors.Is(err, domain.ErrToggleInFlight):
		code = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnauthenticated):
		code = http.StatusUnauthorized
	case errors.Is(err, domain.ErrTimeout):
		code = http.StatusGatewayTimeout
		retryable = true
	case errors.Is(err, domain.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"error":     err.Error(),
		"retryable": retryable,
	})
}

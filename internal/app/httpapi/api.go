// Package httpapi translates HTTP requests into lifecycle service calls. It
// stands in for the chat-platform adapter: callers render and announce the
// returned payloads themselves.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mfreitas/giveaway-engine/internal/app/giveaway"
	"github.com/mfreitas/giveaway-engine/internal/domain"
	"github.com/mfreitas/giveaway-engine/internal/platform/ids"
	"github.com/mfreitas/giveaway-engine/internal/platform/metrics"
	"github.com/mfreitas/giveaway-engine/internal/platform/throttle"
)

// Service is the slice of the lifecycle service the handlers need; tests plug
// in a mock.
type Service interface {
	Create(ctx context.Context, in giveaway.CreateInput) (domain.Lottery, error)
	Join(ctx context.Context, lotteryID uint64, userID int64, roleIDs []int64) error
	Draw(ctx context.Context, lotteryID uint64, actorID int64, automatic bool) (giveaway.DrawResult, error)
	Cancel(ctx context.Context, lotteryID uint64, actorID int64) (giveaway.CancelResult, error)
	Get(ctx context.Context, lotteryID uint64) (giveaway.Snapshot, error)
	ListActive(ctx context.Context, communityID int64, limit int) ([]domain.Lottery, error)
	CommunityStats(ctx context.Context, communityID int64) (domain.CommunityStats, error)
	UserStats(ctx context.Context, communityID, userID int64) (domain.UserStats, error)
}

type API struct {
	service Service
	logger  *slog.Logger
	ids     *ids.Generator
}

func New(service Service, logger *slog.Logger) *API {
	return &API{service: service, logger: logger, ids: ids.DefaultGenerator()}
}

func (a *API) Register(mux *http.ServeMux) {
	// Routes stay centralized so tests and alternative servers reuse them.
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/lotteries", a.withRequestID(a.handleLotteries))
	mux.HandleFunc("/lotteries/", a.withRequestID(a.handleLotteryDetail))
	mux.HandleFunc("/communities/", a.withRequestID(a.handleCommunity))
}

// withRequestID tags every response with a correlation ID so adapter logs can
// be matched against engine logs.
func (a *API) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = a.ids.New()
		}
		w.Header().Set("X-Request-ID", rid)
		next(w, r)
	}
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleLotteries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createLottery(w, r)
	case http.MethodGet:
		a.listActive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handleLotteryDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/lotteries/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid lottery id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		a.getLottery(w, r, id)
	case len(parts) == 2 && parts[1] == "join" && r.Method == http.MethodPost:
		a.joinLottery(w, r, id)
	case len(parts) == 2 && parts[1] == "draw" && r.Method == http.MethodPost:
		a.drawLottery(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		a.cancelLottery(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleCommunity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/communities/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	communityID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid community id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "stats":
		a.communityStats(w, r, communityID)
	case len(parts) == 3 && parts[1] == "users":
		userID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		a.userStats(w, r, communityID, userID)
	default:
		http.NotFound(w, r)
	}
}

type createRequest struct {
	CommunityID   int64    `json:"community_id"`
	ChannelID     int64    `json:"channel_id"`
	CreatorID     int64    `json:"creator_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Prizes        []string `json:"prizes"`
	Capacity      *int     `json:"capacity"`
	Deadline      *string  `json:"deadline"`
	AllowRepeat   bool     `json:"allow_repeat_entry"`
	RequiredRoles []int64  `json:"required_roles"`
}

func (a *API) createLottery(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn("invalid create payload", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	capacity := domain.CapacityUnbounded
	if req.Capacity != nil {
		capacity = *req.Capacity
	}

	var deadline *time.Time
	if req.Deadline != nil && *req.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, *req.Deadline)
		if err != nil {
			http.Error(w, "invalid deadline, expected RFC3339", http.StatusBadRequest)
			return
		}
		deadline = &parsed
	}

	lottery, err := a.service.Create(r.Context(), giveaway.CreateInput{
		CommunityID:   req.CommunityID,
		ChannelID:     req.ChannelID,
		CreatorID:     req.CreatorID,
		Title:         req.Title,
		Description:   req.Description,
		Prizes:        req.Prizes,
		Capacity:      capacity,
		Deadline:      deadline,
		AllowRepeat:   req.AllowRepeat,
		RequiredRoles: req.RequiredRoles,
	})
	if err != nil {
		a.logger.Warn("create lottery rejected", "err", err)
		respondError(w, err)
		return
	}

	a.logger.Info("lottery created", "lottery", lottery.ID, "community", lottery.CommunityID)
	respondJSON(w, http.StatusCreated, lottery)
}

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	communityID, err := strconv.ParseInt(r.URL.Query().Get("community_id"), 10, 64)
	if err != nil {
		http.Error(w, "community_id required", http.StatusBadRequest)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	lotteries, err := a.service.ListActive(r.Context(), communityID, limit)
	if err != nil {
		a.logger.Error("list active failed", "err", err, "community", communityID)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, lotteries)
}

func (a *API) getLottery(w http.ResponseWriter, r *http.Request, id uint64) {
	snapshot, err := a.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

type joinRequest struct {
	UserID  int64   `json:"user_id"`
	RoleIDs []int64 `json:"role_ids"`
}

func (a *API) joinLottery(w http.ResponseWriter, r *http.Request, id uint64) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveJoin("invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.Join(r.Context(), id, req.UserID, req.RoleIDs); err != nil {
		status := joinStatus(err)
		metrics.ObserveJoin(status)
		a.logger.Warn("join rejected", "lottery", id, "user", req.UserID, "status", status, "err", err)
		respondError(w, err)
		return
	}

	metrics.ObserveJoin("joined")
	respondJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

type actorRequest struct {
	ActorID int64 `json:"actor_id"`
}

func (a *API) drawLottery(w http.ResponseWriter, r *http.Request, id uint64) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	result, err := a.service.Draw(r.Context(), id, req.ActorID, false)
	if errors.Is(err, giveaway.ErrNoParticipants) {
		// The lottery still ended; the caller announces the empty outcome.
		metrics.ObserveDraw("manual", "empty")
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "no_participants",
			"result": result,
		})
		return
	}
	if err != nil {
		metrics.ObserveDraw("manual", "rejected")
		a.logger.Warn("draw rejected", "lottery", id, "actor", req.ActorID, "err", err)
		respondError(w, err)
		return
	}

	metrics.ObserveDraw("manual", "drawn")
	a.logger.Info("lottery drawn", "lottery", id, "actor", req.ActorID, "winners", len(result.Winners))
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "drawn",
		"result": result,
	})
}

func (a *API) cancelLottery(w http.ResponseWriter, r *http.Request, id uint64) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	result, err := a.service.Cancel(r.Context(), id, req.ActorID)
	if err != nil {
		a.logger.Warn("cancel rejected", "lottery", id, "actor", req.ActorID, "err", err)
		respondError(w, err)
		return
	}

	a.logger.Info("lottery cancelled", "lottery", id, "actor", req.ActorID)
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "cancelled",
		"result": result,
	})
}

func (a *API) communityStats(w http.ResponseWriter, r *http.Request, communityID int64) {
	stats, err := a.service.CommunityStats(r.Context(), communityID)
	if err != nil {
		a.logger.Error("community stats failed", "err", err, "community", communityID)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request, communityID, userID int64) {
	stats, err := a.service.UserStats(r.Context(), communityID, userID)
	if err != nil {
		a.logger.Error("user stats failed", "err", err, "community", communityID, "user", userID)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, giveaway.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, giveaway.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, giveaway.ErrForbidden), errors.Is(err, giveaway.ErrRoleRequired):
		status = http.StatusForbidden
	case errors.Is(err, giveaway.ErrInvalidState),
		errors.Is(err, giveaway.ErrAlreadyJoined),
		errors.Is(err, giveaway.ErrCapacityReached):
		status = http.StatusConflict
	case errors.Is(err, throttle.ErrThrottled):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func joinStatus(err error) string {
	switch {
	case errors.Is(err, giveaway.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, giveaway.ErrCapacityReached):
		return "capacity"
	case errors.Is(err, giveaway.ErrRoleRequired):
		return "role_required"
	case errors.Is(err, giveaway.ErrInvalidState):
		return "closed"
	case errors.Is(err, giveaway.ErrNotFound):
		return "not_found"
	case errors.Is(err, throttle.ErrThrottled):
		return "throttled"
	default:
		return "error"
	}
}

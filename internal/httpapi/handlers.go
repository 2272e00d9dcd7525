// Package httpapi отдаёт операции ядра по HTTP. Обработчики только
// разбирают запрос, берут Identity из контекста и переводят ошибки в статусы.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/features/admin"
	"serotonyl.ru/tradedesk/internal/features/logins"
	"serotonyl.ru/tradedesk/internal/features/profiles"
	"serotonyl.ru/tradedesk/internal/features/rewards"
	"serotonyl.ru/tradedesk/internal/features/streak"
	"serotonyl.ru/tradedesk/internal/features/tradelimit"
	"serotonyl.ru/tradedesk/internal/features/wallet"
	"serotonyl.ru/tradedesk/internal/market"
	"serotonyl.ru/tradedesk/internal/payments"
	"serotonyl.ru/tradedesk/internal/session"
)

// ProfileReader читает профиль текущего пользователя.
type ProfileReader interface {
	Get(ctx context.Context, id session.Identity) (*profiles.Profile, error)
}

// LoginTracker записывает вход за день.
type LoginTracker interface {
	TrackLogin(ctx context.Context, id session.Identity, now time.Time) (logins.TrackResult, error)
}

// StreakReader считает стрик.
type StreakReader interface {
	ComputeStreak(ctx context.Context, id session.Identity, now time.Time) (streak.Result, error)
}

// RewardEvaluator выдаёт награду за цикл.
type RewardEvaluator interface {
	EvaluateReward(ctx context.Context, id session.Identity, currentStreak int, cycleStart, now time.Time) (rewards.EvaluateResult, error)
	CheckIn(ctx context.Context, id session.Identity, now time.Time) (rewards.CheckInResult, error)
}

// LimitGate — дневной лимит создания ботов.
type LimitGate interface {
	GetLimitState(ctx context.Context, id session.Identity, now time.Time) (tradelimit.State, error)
	CreateBot(ctx context.Context, id session.Identity, req tradelimit.CreateBotRequest, now time.Time) (*tradelimit.Bot, tradelimit.State, error)
}

// WalletReader читает счёт бесплатных ботов.
type WalletReader interface {
	Summary(ctx context.Context, id session.Identity) (wallet.Summary, error)
}

// QuoteSource отдаёт последний снимок котировок.
type QuoteSource interface {
	Snapshot() market.Snapshot
}

// Payments создаёт депозиты и принимает IPN.
type Payments interface {
	CreateDeposit(ctx context.Context, id session.Identity, req payments.CreateDepositRequest) (*payments.Deposit, error)
	HandleIPN(ctx context.Context, body []byte, signature string) (payments.IPNResult, error)
}

// Admin — операции админки.
type Admin interface {
	Login(ctx context.Context, id session.Identity, password string) (admin.LoginResponse, error)
	ListTiers(ctx context.Context, id session.Identity) ([]tradelimit.Tier, error)
	SaveTier(ctx context.Context, id session.Identity, t tradelimit.Tier) (tradelimit.Tier, error)
	AssignTier(ctx context.Context, id session.Identity, userID uuid.UUID, tierName string) error
	ListGrants(ctx context.Context, id session.Identity, userID uuid.UUID) ([]rewards.Grant, error)
	GrantBots(ctx context.Context, id session.Identity, userID uuid.UUID, req admin.GrantBotsRequest) error
}

// Handlers содержит сервисы, которые обслуживает API.
type Handlers struct {
	Profiles ProfileReader
	Logins   LoginTracker
	Streaks  StreakReader
	Rewards  RewardEvaluator
	Limits   LimitGate
	Wallet   WalletReader
	Market   QuoteSource
	Payments Payments
	Admin    Admin

	// Now подменяется в тестах
	Now func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func identity(r *http.Request) session.Identity {
	return session.FromContext(r.Context())
}

// Me — GET /api/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// TrackLogin — POST /api/logins/track
func (h *Handlers) TrackLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.Logins.TrackLogin(r.Context(), identity(r), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ComputeStreak — GET /api/streak
func (h *Handlers) ComputeStreak(w http.ResponseWriter, r *http.Request) {
	res, err := h.Streaks.ComputeStreak(r.Context(), identity(r), h.now())
	if err != nil {
		if res.Stale {
			writeErrorView(w, r, err, res)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckIn — POST /api/streak/checkin
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := h.Rewards.CheckIn(r.Context(), identity(r), h.now())
	if err != nil {
		writeErrorView(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type evaluateRequest struct {
	CurrentStreak int    `json:"current_streak"`
	CycleStart    string `json:"cycle_start"` // YYYY-MM-DD
}

// EvaluateReward — POST /api/rewards/evaluate
func (h *Handlers) EvaluateReward(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cycleStart, err := time.Parse(time.DateOnly, req.CycleStart)
	if err != nil {
		writeError(w, r, common.ErrInvalidInput)
		return
	}

	res, err := h.Rewards.EvaluateReward(r.Context(), identity(r), req.CurrentStreak, cycleStart, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetLimitState — GET /api/limits
func (h *Handlers) GetLimitState(w http.ResponseWriter, r *http.Request) {
	res, err := h.Limits.GetLimitState(r.Context(), identity(r), h.now())
	if err != nil {
		if res.Stale {
			writeErrorView(w, r, err, res)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createBotResponse struct {
	Bot   *tradelimit.Bot  `json:"bot"`
	Limit tradelimit.State `json:"limit"`
}

// CreateBot — POST /api/bots
func (h *Handlers) CreateBot(w http.ResponseWriter, r *http.Request) {
	var req tradelimit.CreateBotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bot, state, err := h.Limits.CreateBot(r.Context(), identity(r), req, h.now())
	if err != nil {
		if errors.Is(err, common.ErrDailyLimitReached) {
			writeErrorView(w, r, err, state)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBotResponse{Bot: bot, Limit: state})
}

// WalletSummary — GET /api/wallet
func (h *Handlers) WalletSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wallet.Summary(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Quotes — GET /api/market/quotes
func (h *Handlers) Quotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Market.Snapshot())
}

// CreateDeposit — POST /api/payments/deposits
func (h *Handlers) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req payments.CreateDepositRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dep, err := h.Payments.CreateDeposit(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// IPN — POST /api/payments/ipn
func (h *Handlers) IPN(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Payments.HandleIPN(r.Context(), body, r.Header.Get("x-nowpayments-sig"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdminLogin — POST /api/admin/login
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req admin.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Admin.Login(r.Context(), identity(r), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListTiers — GET /api/admin/tiers
func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Admin.ListTiers(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tiers == nil {
		tiers = []tradelimit.Tier{}
	}
	writeJSON(w, http.StatusOK, tiers)
}

// SaveTier — POST /api/admin/tiers
func (h *Handlers) SaveTier(w http.ResponseWriter, r *http.Request) {
	var t tradelimit.Tier
	if err := decode(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.Admin.SaveTier(r.Context(), identity(r), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// AssignTier — PUT /api/admin/users/{id}/tier
func (h *Handlers) AssignTier(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	var req admin.AssignTierRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.AssignTier(r.Context(), identity(r), userID, req.Tier); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGrants — GET /api/admin/users/{id}/grants
func (h *Handlers) ListGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	grants, err := h.Admin.ListGrants(r.Context(), identity(r), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if grants == nil {
		grants = []rewards.Grant{}
	}
	writeJSON(w, http.StatusOK, grants)
}

// GrantBots — POST /api/admin/users/{id}/bots
func (h *Handlers) GrantBots(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	var req admin.GrantBotsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.GrantBots(r.Context(), identity(r), userID, req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, common.ErrInvalidInput)
		return uuid.Nil, false
	}
	return userID, true
}

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

var fixedNow = time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

type fakeProfiles struct{}

func (fakeProfiles) Get(_ context.Context, id session.Identity) (*profiles.Profile, error) {
	if id.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}
	return &profiles.Profile{UserID: id.UserID, CreatedAt: fixedNow, LastSeenAt: fixedNow}, nil
}

type fakeLogins struct{ calls int }

func (f *fakeLogins) TrackLogin(_ context.Context, id session.Identity, now time.Time) (logins.TrackResult, error) {
	if id.IsAnonymous() {
		return logins.TrackResult{}, nil
	}
	f.calls++
	return logins.TrackResult{IsNewLogin: f.calls == 1, LoginDate: common.FormatDate(now)}, nil
}

type fakeStreaks struct {
	res streak.Result
	err error
}

func (f *fakeStreaks) ComputeStreak(context.Context, session.Identity, time.Time) (streak.Result, error) {
	return f.res, f.err
}

type fakeRewards struct {
	gotStreak int
	gotCycle  time.Time
}

func (f *fakeRewards) EvaluateReward(_ context.Context, id session.Identity, s int, cycleStart, _ time.Time) (rewards.EvaluateResult, error) {
	f.gotStreak, f.gotCycle = s, cycleStart
	return rewards.EvaluateResult{NewFreeBotEarned: !id.IsAnonymous() && s == 7}, nil
}

func (f *fakeRewards) CheckIn(context.Context, session.Identity, time.Time) (rewards.CheckInResult, error) {
	return rewards.CheckInResult{Login: logins.TrackResult{IsNewLogin: true}}, nil
}

type fakeLimits struct {
	state tradelimit.State
	err   error
}

func (f *fakeLimits) GetLimitState(context.Context, session.Identity, time.Time) (tradelimit.State, error) {
	return f.state, f.err
}

func (f *fakeLimits) CreateBot(_ context.Context, id session.Identity, req tradelimit.CreateBotRequest, now time.Time) (*tradelimit.Bot, tradelimit.State, error) {
	if f.err != nil {
		return nil, f.state, f.err
	}
	return &tradelimit.Bot{ID: uuid.New(), UserID: id.UserID, Symbol: req.Symbol, CreatedAt: now}, f.state, nil
}

type fakeWallet struct{}

func (fakeWallet) Summary(context.Context, session.Identity) (wallet.Summary, error) {
	return wallet.Summary{Wallet: wallet.Wallet{FreeBots: 2}, Transactions: []wallet.Transaction{}}, nil
}

type fakeQuotes struct{}

func (fakeQuotes) Snapshot() market.Snapshot {
	return market.Snapshot{Provider: "coingecko", Quotes: []market.Quote{{Symbol: "BTC", PriceUSD: 50000}}}
}

type fakePayments struct{ sig string }

func (f *fakePayments) CreateDeposit(context.Context, session.Identity, payments.CreateDepositRequest) (*payments.Deposit, error) {
	return nil, common.ErrPaymentsDisabled
}

func (f *fakePayments) HandleIPN(_ context.Context, _ []byte, sig string) (payments.IPNResult, error) {
	f.sig = sig
	if sig != "good" {
		return payments.IPNResult{}, common.ErrBadSignature
	}
	return payments.IPNResult{Status: "ok"}, nil
}

type fakeAdmin struct{ assigned string }

func (f *fakeAdmin) Login(_ context.Context, id session.Identity, password string) (admin.LoginResponse, error) {
	if id.IsAnonymous() {
		return admin.LoginResponse{}, common.ErrUnauthenticated
	}
	if password != "secret" {
		return admin.LoginResponse{}, common.ErrWrongPassword
	}
	return admin.LoginResponse{Token: "tok"}, nil
}

func (f *fakeAdmin) ListTiers(_ context.Context, id session.Identity) ([]tradelimit.Tier, error) {
	if !id.IsAdmin() {
		return nil, common.ErrNotAdmin
	}
	return nil, nil
}

func (f *fakeAdmin) SaveTier(_ context.Context, _ session.Identity, t tradelimit.Tier) (tradelimit.Tier, error) {
	return t, nil
}

func (f *fakeAdmin) AssignTier(_ context.Context, _ session.Identity, userID uuid.UUID, tier string) error {
	f.assigned = userID.String() + ":" + tier
	return nil
}

func (f *fakeAdmin) ListGrants(context.Context, session.Identity, uuid.UUID) ([]rewards.Grant, error) {
	return nil, nil
}

func (f *fakeAdmin) GrantBots(context.Context, session.Identity, uuid.UUID, admin.GrantBotsRequest) error {
	return common.ErrInvalidAmount
}

type env struct {
	srv      *httptest.Server
	acc      *session.Accessor
	handlers *Handlers
	streaks  *fakeStreaks
	limits   *fakeLimits
	rewards  *fakeRewards
	payments *fakePayments
	admin    *fakeAdmin
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		acc:      session.NewAccessor("test-secret-test-secret-test-secret", "admin-secret-admin-secret-admin-secret"),
		streaks:  &fakeStreaks{res: streak.Calculate(nil, fixedNow, 7)},
		limits:   &fakeLimits{state: tradelimit.Derive(5, 1)},
		rewards:  &fakeRewards{},
		payments: &fakePayments{},
		admin:    &fakeAdmin{},
	}
	e.handlers = &Handlers{
		Profiles: fakeProfiles{},
		Logins:   &fakeLogins{},
		Streaks:  e.streaks,
		Rewards:  e.rewards,
		Limits:   e.limits,
		Wallet:   fakeWallet{},
		Market:   fakeQuotes{},
		Payments: e.payments,
		Admin:    e.admin,
		Now:      func() time.Time { return fixedNow },
	}
	e.srv = httptest.NewServer(NewRouter(RouterOptions{
		Handlers:        e.handlers,
		Resolver:        e.acc,
		MarketEnabled:   true,
		PaymentsEnabled: true,
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.acc.Issue(session.Identity{UserID: uuid.New(), Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestMe(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/me", e.token(t, session.RoleUser), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["user_id"])
}

func TestTrackLoginAnonymousIsZero(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/logins/track", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_new_login"])
}

func TestTrackLoginAuthenticated(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, session.RoleUser)

	_, body := e.do(t, http.MethodPost, "/api/logins/track", tok, "")
	assert.Equal(t, true, body["is_new_login"])
	assert.Equal(t, "2026-03-05", body["login_date"])

	_, body = e.do(t, http.MethodPost, "/api/logins/track", tok, "")
	assert.Equal(t, false, body["is_new_login"])
}

func TestComputeStreakReturnsSevenSlots(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/streak", e.token(t, session.RoleUser), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["streak_days"], streak.CycleDays)
	assert.EqualValues(t, 1, body["current_day_in_cycle"])
}

func TestComputeStreakStaleOnStoreOutage(t *testing.T) {
	e := newEnv(t)
	stale := e.streaks.res
	stale.CurrentStreak = 3
	stale.Stale = true
	e.streaks.res = stale
	e.streaks.err = fmt.Errorf("list: %w", common.ErrStoreUnavailable)

	resp, body := e.do(t, http.MethodGet, "/api/streak", e.token(t, session.RoleUser), "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	view, ok := body["view"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, view["current_streak"])
	assert.Equal(t, true, view["stale"])
}

func TestEvaluateReward(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, session.RoleUser)

	resp, body := e.do(t, http.MethodPost, "/api/rewards/evaluate", tok, `{"current_streak":7,"cycle_start":"2026-02-27"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["new_free_bot_earned"])
	assert.Equal(t, 7, e.rewards.gotStreak)
	assert.Equal(t, time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), e.rewards.gotCycle)

	resp, _ = e.do(t, http.MethodPost, "/api/rewards/evaluate", tok, `{"current_streak":7,"cycle_start":"27.02.2026"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/rewards/evaluate", tok, `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckIn(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/streak/checkin", e.token(t, session.RoleUser), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "login")
	assert.Contains(t, body, "streak")
	assert.Contains(t, body, "reward")
}

func TestLimitsAndCreateBot(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, session.RoleUser)

	resp, body := e.do(t, http.MethodGet, "/api/limits", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, body["daily_limit"])
	assert.EqualValues(t, 4, body["remaining"])
	assert.Equal(t, true, body["can_create"])

	resp, body = e.do(t, http.MethodPost, "/api/bots", tok, `{"symbol":"BTC","strategy":"grid"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, "bot")
	assert.Contains(t, body, "limit")

	e.limits.state = tradelimit.Derive(5, 5)
	e.limits.err = common.ErrDailyLimitReached
	resp, body = e.do(t, http.MethodPost, "/api/bots", tok, `{"symbol":"BTC","strategy":"grid"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	view, ok := body["view"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, view["can_create"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrUnauthenticated, http.StatusUnauthorized},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{common.ErrExternalService, http.StatusBadGateway},
		{common.ErrDailyLimitReached, http.StatusForbidden},
		{common.ErrNotAdmin, http.StatusForbidden},
		{common.ErrTooManyAttempts, http.StatusTooManyRequests},
		{common.ErrNoFreeBots, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", common.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestInternalErrorHidesMessage(t *testing.T) {
	e := newEnv(t)
	e.limits.err = fmt.Errorf("pq: secret detail")

	resp, body := e.do(t, http.MethodGet, "/api/limits", e.token(t, session.RoleUser), "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body["error"], "secret")
}

func TestServerErrorSendsOnlySentinelText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		text string
	}{
		{"store", fmt.Errorf("ошибка загрузки лимита: %w: dial tcp 10.0.0.5:5432: connect refused", common.ErrStoreUnavailable), http.StatusServiceUnavailable, common.ErrStoreUnavailable.Error()},
		{"external", fmt.Errorf("%w: nowpayments 500 api_key=abc", common.ErrExternalService), http.StatusBadGateway, common.ErrExternalService.Error()},
		{"payments off", fmt.Errorf("invoice: %w", common.ErrPaymentsDisabled), http.StatusServiceUnavailable, common.ErrPaymentsDisabled.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.limits.err = tt.err

			resp, body := e.do(t, http.MethodGet, "/api/limits", e.token(t, session.RoleUser), "")
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.text, body["error"])
		})
	}
}

func TestClientErrorKeepsDetail(t *testing.T) {
	e := newEnv(t)
	e.limits.err = fmt.Errorf("%w: symbol обязателен", common.ErrInvalidInput)

	resp, body := e.do(t, http.MethodGet, "/api/limits", e.token(t, session.RoleUser), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "symbol обязателен")
}

func TestWalletAndQuotes(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/api/wallet", e.token(t, session.RoleUser), "")
	w, ok := body["wallet"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, w["free_bots"])

	resp, body := e.do(t, http.MethodGet, "/api/market/quotes", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "coingecko", body["provider"])
}

func TestPaymentsRoutes(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/payments/deposits", e.token(t, session.RoleUser), `{"price_amount":10,"price_currency":"usd","pay_currency":"btc"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/payments/ipn", strings.NewReader(`{"payment_id":1}`))
	req.Header.Set("x-nowpayments-sig", "bad")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
	assert.Equal(t, "bad", e.payments.sig)
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	userTok := e.token(t, session.RoleUser)
	adminTok := e.token(t, session.RoleAdmin)

	resp, _ := e.do(t, http.MethodPost, "/api/admin/login", "", `{"password":"secret"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/admin/login", userTok, `{"password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/admin/login", userTok, `{"password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tok", body["token"])

	resp, _ = e.do(t, http.MethodGet, "/api/admin/tiers", userTok, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/admin/tiers", adminTok, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	target := uuid.New()
	resp, _ = e.do(t, http.MethodPut, "/api/admin/users/"+target.String()+"/tier", adminTok, `{"tier":"Gold"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, target.String()+":Gold", e.admin.assigned)

	resp, _ = e.do(t, http.MethodPut, "/api/admin/users/not-a-uuid/tier", adminTok, `{"tier":"Gold"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/admin/users/"+target.String()+"/bots", adminTok, `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProviderAdminRoleIsNotAdmin(t *testing.T) {
	e := newEnv(t)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &session.Claims{
		Role: session.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret-test-secret-test-secret"))
	require.NoError(t, err)

	resp, _ := e.do(t, http.MethodGet, "/api/admin/tiers", forged, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthAndNotFound(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = e.do(t, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Package metrics — счётчики Prometheus для операций ядра.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит все счётчики сервиса.
type Metrics struct {
	loginsTracked  *prometheus.CounterVec
	rewardsGranted prometheus.Counter
	rewardFailures prometheus.Counter
	gateDecisions  *prometheus.CounterVec
	marketRefresh  *prometheus.CounterVec
	ipnReceived    *prometheus.CounterVec
}

var (
	once     sync.Once
	registry *Metrics
)

// Default возвращает зарегистрированный в prometheus набор счётчиков.
func Default() *Metrics {
	once.Do(func() {
		registry = New()
		prometheus.MustRegister(
			registry.loginsTracked,
			registry.rewardsGranted,
			registry.rewardFailures,
			registry.gateDecisions,
			registry.marketRefresh,
			registry.ipnReceived,
		)
	})
	return registry
}

// New создаёт незарегистрированный набор. Нужен тестам.
func New() *Metrics {
	return &Metrics{
		loginsTracked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_logins_tracked_total",
			Help: "Login tracking calls by outcome (new or repeat).",
		}, []string{"outcome"}),
		rewardsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradedesk_streak_rewards_granted_total",
			Help: "Free bots granted for completed streak cycles.",
		}),
		rewardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradedesk_streak_reward_failures_total",
			Help: "Reward grants rolled back because crediting failed.",
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_trade_gate_decisions_total",
			Help: "Bot creation attempts by gate decision.",
		}, []string{"decision"}),
		marketRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_market_refresh_total",
			Help: "Market quote refreshes by provider and result.",
		}, []string{"provider", "result"}),
		ipnReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_payment_ipn_total",
			Help: "NowPayments IPN callbacks by payment status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveLogin(isNew bool) {
	if m == nil {
		return
	}
	outcome := "repeat"
	if isNew {
		outcome = "new"
	}
	m.loginsTracked.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRewardGranted() {
	if m == nil {
		return
	}
	m.rewardsGranted.Inc()
}

func (m *Metrics) ObserveRewardFailure() {
	if m == nil {
		return
	}
	m.rewardFailures.Inc()
}

func (m *Metrics) ObserveGate(allowed bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if allowed {
		decision = "allowed"
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveMarketRefresh(provider string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.marketRefresh.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) ObserveIPN(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.ipnReceived.WithLabelValues(status).Inc()
}

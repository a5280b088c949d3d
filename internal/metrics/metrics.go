// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 認証・セッション・進捗の各サービス層から利用する。
type Collector struct {
	signups          prometheus.Counter
	logins           prometheus.Counter
	sessionsCreated  prometheus.Counter
	sessionsSwept    prometheus.Counter
	attempts         prometheus.Counter
	completions      prometheus.Counter
	xpAwarded        prometheus.Counter
	conflictRetries  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_signups_total",
			Help: "ユーザー登録の合計数",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_logins_total",
			Help: "ログイン成功の合計数",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_sessions_created_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_sessions_swept_total",
			Help: "掃除された期限切れセッションの合計数",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_attempts_recorded_total",
			Help: "記録されたレッスン挑戦の合計数",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_completions_awarded_total",
			Help: "初回完了としてカウントされたレッスンの合計数",
		}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_xp_awarded_total",
			Help: "付与されたXPの合計",
		}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secdojo_attempt_conflict_retries_total",
			Help: "挑戦記録トランザクションの競合リトライ回数",
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.sessionsCreated,
		c.sessionsSwept,
		c.attempts,
		c.completions,
		c.xpAwarded,
		c.conflictRetries,
	)

	return c
}

// RecordSignup はユーザー登録を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordSessionCreated はセッション発行を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordSessionsSwept は掃除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordAttempt は挑戦の記録を記録する。
func (c *Collector) RecordAttempt() {
	c.attempts.Inc()
}

// RecordCompletionAwarded は初回完了とXP付与を記録する。
func (c *Collector) RecordCompletionAwarded(xp int) {
	c.completions.Inc()
	c.xpAwarded.Add(float64(xp))
}

// RecordConflictRetry は競合リトライを記録する。
func (c *Collector) RecordConflictRetry() {
	c.conflictRetries.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

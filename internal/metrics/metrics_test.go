package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSignup_IncrementsCounter は登録カウンタが増加することを検証する。
func TestRecordSignup_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup()
	c.RecordSignup()

	if val := counterValue(t, reg, "secdojo_signups_total"); val != 2 {
		t.Errorf("signups_total = %v, want 2", val)
	}
}

// TestRecordLogin_IncrementsCounter はログインカウンタが増加することを検証する。
func TestRecordLogin_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin()

	if val := counterValue(t, reg, "secdojo_logins_total"); val != 1 {
		t.Errorf("logins_total = %v, want 1", val)
	}
}

// TestRecordSessionCreated_IncrementsCounter はセッション発行カウンタが増加することを検証する。
func TestRecordSessionCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCreated()
	c.RecordSessionCreated()
	c.RecordSessionCreated()

	if val := counterValue(t, reg, "secdojo_sessions_created_total"); val != 3 {
		t.Errorf("sessions_created_total = %v, want 3", val)
	}
}

// TestRecordSessionsSwept_AddsCount は掃除件数が加算されることを検証する。
func TestRecordSessionsSwept_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsSwept(10)
	c.RecordSessionsSwept(5)

	if val := counterValue(t, reg, "secdojo_sessions_swept_total"); val != 15 {
		t.Errorf("sessions_swept_total = %v, want 15", val)
	}
}

// TestRecordAttempt_IncrementsCounter は挑戦カウンタが増加することを検証する。
func TestRecordAttempt_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAttempt()
	c.RecordAttempt()

	if val := counterValue(t, reg, "secdojo_attempts_recorded_total"); val != 2 {
		t.Errorf("attempts_recorded_total = %v, want 2", val)
	}
}

// TestRecordCompletionAwarded_IncrementsBothCounters は初回完了の記録で
// 完了カウンタとXPカウンタの両方が更新されることを検証する。
func TestRecordCompletionAwarded_IncrementsBothCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompletionAwarded(100)
	c.RecordCompletionAwarded(150)

	if val := counterValue(t, reg, "secdojo_completions_awarded_total"); val != 2 {
		t.Errorf("completions_awarded_total = %v, want 2", val)
	}
	if val := counterValue(t, reg, "secdojo_xp_awarded_total"); val != 250 {
		t.Errorf("xp_awarded_total = %v, want 250", val)
	}
}

// TestRecordConflictRetry_IncrementsCounter は競合リトライカウンタが増加することを検証する。
func TestRecordConflictRetry_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConflictRetry()

	if val := counterValue(t, reg, "secdojo_attempt_conflict_retries_total"); val != 1 {
		t.Errorf("attempt_conflict_retries_total = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordSignup()
	c.RecordLogin()
	c.RecordAttempt()
	c.RecordCompletionAwarded(100)
	c.RecordSessionsSwept(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"secdojo_signups_total",
		"secdojo_logins_total",
		"secdojo_attempts_recorded_total",
		"secdojo_completions_awarded_total",
		"secdojo_xp_awarded_total",
		"secdojo_sessions_swept_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %s", metric)
		}
	}
}

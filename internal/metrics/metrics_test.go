package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定した名前のカウンタの合計値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestRecordLogin_CountsByMethodAndResult はログイン試行が方式・成否別に記録されることを検証する。
func TestRecordLogin_CountsByMethodAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("local", true)
	c.RecordLogin("local", false)
	c.RecordLogin("google", true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "weatherman_login_attempts_total" {
			found = true
			// local/success, local/failure, google/success の3系列
			if len(mf.GetMetric()) != 3 {
				t.Errorf("expected 3 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("weatherman_login_attempts_total metric not found")
	}
}

// TestRecordSignup_IncrementsCounter はアカウント作成カウンタが増加することを検証する。
func TestRecordSignup_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup("local")
	c.RecordSignup("google")

	if got := counterValue(t, reg, "weatherman_signups_total"); got != 2 {
		t.Errorf("signups_total = %v, want 2", got)
	}
}

// TestRecordSessionLifecycle はセッション作成・破棄カウンタを検証する。
func TestRecordSessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCreated()
	c.RecordSessionCreated()
	c.RecordSessionDestroyed()

	if got := counterValue(t, reg, "weatherman_sessions_created_total"); got != 2 {
		t.Errorf("sessions_created_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "weatherman_sessions_destroyed_total"); got != 1 {
		t.Errorf("sessions_destroyed_total = %v, want 1", got)
	}
}

// TestRecordSessionsReaped_AddsCount はクリーンアップ削除数が加算されることを検証する。
func TestRecordSessionsReaped_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsReaped(5)
	c.RecordSessionsReaped(3)

	if got := counterValue(t, reg, "weatherman_sessions_reaped_total"); got != 8 {
		t.Errorf("sessions_reaped_total = %v, want 8", got)
	}
}

// TestRecordWeatherAPIRequest_CountsAndObserves は天気API呼び出しの記録を検証する。
func TestRecordWeatherAPIRequest_CountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWeatherAPIRequest("current", 200, 120*time.Millisecond)
	c.RecordWeatherAPIRequest("forecast", 404, 80*time.Millisecond)

	if got := counterValue(t, reg, "weatherman_weather_api_requests_total"); got != 2 {
		t.Errorf("weather_api_requests_total = %v, want 2", got)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "weatherman_weather_api_latency_seconds" {
			found = true
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
				t.Errorf("latency sample count = %d, want 2", got)
			}
		}
	}
	if !found {
		t.Error("weatherman_weather_api_latency_seconds metric not found")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsエンドポイントがスクレイプ可能なことを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionCreated()

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "weatherman_sessions_created_total") {
		t.Error("scrape output should contain weatherman_sessions_created_total")
	}
}

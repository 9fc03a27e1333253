// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 認証サービスと天気APIクライアントの両方から利用される。
type Collector struct {
	loginAttempts     *prometheus.CounterVec
	signups           *prometheus.CounterVec
	sessionsCreated   prometheus.Counter
	sessionsDestroyed prometheus.Counter
	sessionsReaped    prometheus.Counter
	weatherAPIStatus  *prometheus.CounterVec
	weatherAPILatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherman_login_attempts_total",
			Help: "ログイン試行数（認証方式・成否別）",
		}, []string{"method", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherman_signups_total",
			Help: "アカウント作成数（認証方式別）",
		}, []string{"method"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherman_sessions_created_total",
			Help: "作成されたセッションの合計数",
		}),
		sessionsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherman_sessions_destroyed_total",
			Help: "ログアウトで破棄されたセッションの合計数",
		}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherman_sessions_reaped_total",
			Help: "クリーンアップワーカーが削除した期限切れセッションの合計数",
		}),
		weatherAPIStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherman_weather_api_requests_total",
			Help: "OpenWeather APIへのリクエスト数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		weatherAPILatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherman_weather_api_latency_seconds",
			Help:    "OpenWeather APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.signups,
		c.sessionsCreated,
		c.sessionsDestroyed,
		c.sessionsReaped,
		c.weatherAPIStatus,
		c.weatherAPILatency,
	)

	return c
}

// RecordLogin はログイン試行を記録する。methodは"local"または"google"。
func (c *Collector) RecordLogin(method string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.loginAttempts.WithLabelValues(method, result).Inc()
}

// RecordSignup はアカウント作成を記録する。
func (c *Collector) RecordSignup(method string) {
	c.signups.WithLabelValues(method).Inc()
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordSessionDestroyed はセッション破棄を記録する。
func (c *Collector) RecordSessionDestroyed() {
	c.sessionsDestroyed.Inc()
}

// RecordSessionsReaped はクリーンアップで削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsReaped(count int64) {
	c.sessionsReaped.Add(float64(count))
}

// RecordWeatherAPIRequest はOpenWeather API呼び出しの結果を記録する。
func (c *Collector) RecordWeatherAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	c.weatherAPIStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.weatherAPILatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// メインのAPIサーバーとは別ポートで公開する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Package weather はOpenWeather APIのプロキシクライアントを提供する。
// APIキーをサーバー側に保持し、ジオコーディング・現在天気・5日間予報の
// 取得をバックエンド経由で行う。
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultGeocodeEndpoint はOpenWeatherのジオコーディングAPIのエンドポイント。
	defaultGeocodeEndpoint = "https://api.openweathermap.org/geo/1.0/direct"
	// defaultCurrentEndpoint は現在天気APIのエンドポイント。
	defaultCurrentEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	// defaultForecastEndpoint は5日間予報APIのエンドポイント。
	defaultForecastEndpoint = "https://api.openweathermap.org/data/2.5/forecast"

	// maxGeocodeResults はジオコーディングの最大候補数。
	maxGeocodeResults = 5

	// forecastNoonMarker は予報リストから正午のエントリを選ぶためのマーカー。
	// 3時間刻みの予報から1日1件を抽出する。
	forecastNoonMarker = "12:00:00"
)

// Metrics は天気APIの呼び出しメトリクスを記録する。
// nilの場合は記録をスキップする。
type Metrics interface {
	RecordWeatherAPIRequest(endpoint string, statusCode int, duration time.Duration)
}

// Location はジオコーディングAPIが返す候補地点。
type Location struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Client はOpenWeather APIのクライアント。
// レートリミッターにより外部APIの無料枠を超える呼び出しを抑制する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
	apiKey     string
	limiter    *rate.Limiter

	// テスト用にエンドポイントを差し替え可能
	geocodeEndpoint  string
	currentEndpoint  string
	forecastEndpoint string
}

// NewClient はClientの新しいインスタンスを生成する。
// rps/burst はOpenWeather APIに対する呼び出しのペース上限。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics Metrics, apiKey string, rps float64, burst int) *Client {
	return &Client{
		httpClient:       httpClient,
		logger:           logger,
		metrics:          metrics,
		apiKey:           apiKey,
		limiter:          rate.NewLimiter(rate.Limit(rps), burst),
		geocodeEndpoint:  defaultGeocodeEndpoint,
		currentEndpoint:  defaultCurrentEndpoint,
		forecastEndpoint: defaultForecastEndpoint,
	}
}

// Geocode は地名・郵便番号から候補地点を最大5件取得する。
func (c *Client) Geocode(ctx context.Context, query string) ([]Location, error) {
	if strings.TrimSpace(query) == "" {
		return []Location{}, nil
	}

	params := url.Values{
		"q":     {query},
		"limit": {fmt.Sprintf("%d", maxGeocodeResults)},
	}
	body, err := c.get(ctx, "geocode", c.geocodeEndpoint, params)
	if err != nil {
		return nil, err
	}

	var locations []Location
	if err := json.Unmarshal(body, &locations); err != nil {
		return nil, fmt.Errorf("ジオコーディングレスポンスのパースに失敗しました: %w", err)
	}
	return locations, nil
}

// Current は指定地点の現在天気を取得する。
// レスポンスはOpenWeatherのペイロードをそのまま返す（プロキシ動作）。
func (c *Client) Current(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{
		"q":     {query},
		"units": {"metric"},
	}
	return c.get(ctx, "current", c.currentEndpoint, params)
}

// Forecast は指定地点の5日間予報を取得し、正午のエントリのみに絞り込む。
// OpenWeatherの予報は3時間刻みのため、1日1件の日次予報に変換する。
func (c *Client) Forecast(ctx context.Context, query string) ([]json.RawMessage, error) {
	params := url.Values{
		"q":     {query},
		"units": {"metric"},
	}
	body, err := c.get(ctx, "forecast", c.forecastEndpoint, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("予報レスポンスのパースに失敗しました: %w", err)
	}

	daily := make([]json.RawMessage, 0, 5)
	for _, raw := range resp.List {
		var entry struct {
			DtTxt string `json:"dt_txt"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if strings.Contains(entry.DtTxt, forecastNoonMarker) {
			daily = append(daily, raw)
		}
	}
	return daily, nil
}

// get はレートリミッターのペース制御下でOpenWeather APIを呼び出す。
// APIキーはここで付与され、呼び出し元のパラメータには現れない。
func (c *Client) get(ctx context.Context, name, endpoint string, params url.Values) ([]byte, error) {
	// 1. ペース待ち（コンテキストキャンセルで中断可能）
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レートリミッターの待機が中断されました: %w", err)
	}

	// 2. リクエストURL構築
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	params.Set("appid", c.apiKey)
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Weatherman/1.0")

	// 3. HTTPリクエスト実行
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OpenWeather APIの呼び出しに失敗しました",
			slog.String("endpoint", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("OpenWeather APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordWeatherAPIRequest(name, resp.StatusCode, time.Since(start))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenWeather APIがエラーステータスを返しました",
			slog.String("endpoint", name),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("OpenWeather APIがステータス %d を返しました", resp.StatusCode)
	}

	return body, nil
}

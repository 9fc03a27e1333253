package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/weatherman/internal/middleware"
	"github.com/hitoshi/weatherman/internal/model"
	"github.com/hitoshi/weatherman/internal/weather"
)

// WeatherServiceInterface は天気ハンドラーが必要とするサービスインターフェース。
type WeatherServiceInterface interface {
	Geocode(ctx context.Context, query string) ([]weather.Location, error)
	Current(ctx context.Context, query string) (json.RawMessage, error)
	Forecast(ctx context.Context, query string) ([]json.RawMessage, error)
}

// WeatherHandler は認証保護された天気関連のHTTPハンドラー。
// すべてのハンドラーはセッションミドルウェアの背後に配置する。
type WeatherHandler struct {
	service WeatherServiceInterface
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(service WeatherServiceInterface) *WeatherHandler {
	return &WeatherHandler{service: service}
}

// Welcome は認証済みユーザーへの挨拶とユーザー情報を返す。
// GET /weather
func (h *WeatherHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Welcome, " + user.Name,
		"user":    toUserResponse(user),
	})
}

// Geocode は地名・郵便番号から候補地点を返す。
// GET /api/weather/geocode?q=xxx
func (h *WeatherHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	locations, err := h.service.Geocode(r.Context(), query)
	if err != nil {
		slog.Error("geocode failed", slog.String("error", err.Error()))
		middleware.WriteError(w, model.NewWeatherFetchFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(locations)
}

// Current は指定地点の現在天気を返す。
// GET /api/weather/current?q=xxx
// レスポンスはOpenWeatherのペイロードをそのまま透過する。
func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteError(w, model.NewValidationError("qパラメータを指定してください"))
		return
	}

	payload, err := h.service.Current(r.Context(), query)
	if err != nil {
		slog.Error("current weather fetch failed", slog.String("error", err.Error()))
		middleware.WriteError(w, model.NewWeatherFetchFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// Forecast は指定地点の日次予報（正午のエントリ）を返す。
// GET /api/weather/forecast?q=xxx
func (h *WeatherHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteError(w, model.NewValidationError("qパラメータを指定してください"))
		return
	}

	daily, err := h.service.Forecast(r.Context(), query)
	if err != nil {
		slog.Error("forecast fetch failed", slog.String("error", err.Error()))
		middleware.WriteError(w, model.NewWeatherFetchFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"list": daily,
	})
}

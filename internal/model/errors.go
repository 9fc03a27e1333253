// Package model はドメインモデルを定義する。
package model

import "errors"

// ErrConflict はストアの一意性制約違反を表すセンチネルエラー。
// 同時リクエストが同じemailやgoogle_idを書き込もうとした場合に発生する。
// 認証サービス内部で「再検索」にフォールバックするための判別に使用し、
// そのままクライアントへ返してはならない。
var ErrConflict = errors.New("store: uniqueness conflict")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, weather, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return "[" + e.Code + "] " + e.Message
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeFederationError    = "FEDERATION_ERROR"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeWeatherFetchFailed = "WEATHER_FETCH_FAILED"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を推測させないため、メッセージは
// 「存在しないメール」と「パスワード不一致」で共通とする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// 「期限切れ」と「セッションが存在しない」は区別しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewEmailConflictError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewEmailConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewFederationError は外部IdPとの連携失敗エラーを生成する。
// プロバイダー到達不能・応答不正・アサーション拒否のいずれも同じ扱いとし、
// アカウントの作成・変更は一切行われない。
func NewFederationError() *APIError {
	return &APIError{
		Code:     ErrCodeFederationError,
		Message:  "外部アカウントでの認証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインをお試しください。",
	}
}

// NewStoreUnavailableError はストア到達不能エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容が正しくありません: " + reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewWeatherFetchFailedError は天気データ取得失敗エラーを生成する。
// 天気プロバイダーの障害は認証コアのエラー分類とは独立している。
func NewWeatherFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWeatherFetchFailed,
		Message:  "天気情報の取得に失敗しました。",
		Category: "weather",
		Action:   "都市名または郵便番号を確認し、しばらく待ってから再度お試しください。",
	}
}

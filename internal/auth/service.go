// Package auth はローカル認証・Google OAuth認証・セッション管理を提供する。
// 2つの認証経路（ローカル / Google連携）がどの順序で使われても、
// 1人のユーザーにつきアカウントレコードが1件のみ存在することを保証する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/weatherman/internal/model"
	"github.com/hitoshi/weatherman/internal/repository"
)

// FederatedAssertion は外部IdPが保証するユーザー情報を表す。
// SubjectIDはプロバイダー内で安定した識別子、Emailは検証済みメールアドレス。
type FederatedAssertion struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、アサーションを取得する。
	ExchangeCode(ctx context.Context, code string) (*FederatedAssertion, error)
}

// Metrics は認証イベントの記録インターフェース。
// 実装はinternal/metricsが提供する。nilの場合は何も記録しない。
type Metrics interface {
	RecordLogin(method string, success bool)
	RecordSignup(method string)
	RecordSessionCreated()
	RecordSessionDestroyed()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）。固定TTLでありスライディング延長はしない。
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	verifier    *PasswordVerifier
	metrics     Metrics
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	verifier *PasswordVerifier,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		verifier:    verifier,
		metrics:     metrics,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Signup はローカルアカウントを作成し、セッションを発行する。
// メールアドレスの一意性はストアの制約が最終的な保証であり、
// 同時リクエストとの競合はErrConflictとして観測される。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.User, *model.Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return nil, nil, model.NewValidationError("名前を入力してください")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(password) < 8 {
		return nil, nil, model.NewValidationError("パスワードは8文字以上で入力してください")
	}

	hash, err := s.verifier.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, nil, model.NewEmailConflictError()
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.recordSignup("local")
	slog.Info("new user signed up",
		slog.String("user_id", user.ID),
		slog.String("method", "local"),
	)

	return user, session, nil
}

// LoginLocal はメールアドレスとパスワードでユーザーを認証し、セッションを発行する。
// 「メールアドレスが存在しない」と「パスワード不一致」はどちらも
// 同一のInvalidCredentialsエラーになる（アカウント存在の漏洩防止）。
// 副作用は検索とセッション発行のみで、ユーザーレコードは変更しない。
func (s *Service) LoginLocal(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = normalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.verifier.Verify(user.PasswordHash, password) {
		s.recordLogin("local", false)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.recordLogin("local", true)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", "local"),
	)

	return user, session, nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// アカウントの特定は次の優先順位で行う:
//  1. google_id一致 → そのまま認証成功（メールの再照合はしない。
//     プロバイダー側でメールが変わっても再ログインできる）
//  2. email一致 → 既存アカウントにgoogle_idを紐付け（リンク）
//  3. どちらも不一致 → 新規アカウントを作成
//
// プロバイダーとの交換に失敗した場合はFederationErrorとなり、
// アカウントの作成・変更は一切行われない。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	// 1. 認可コードをトークンに交換し、アサーションを取得
	assertion, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recordLogin("google", false)
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, nil, model.NewFederationError()
	}

	// 2. アカウントの特定（検索 → リンク → 作成）
	user, err := s.resolveFederatedUser(ctx, assertion)
	if err != nil {
		s.recordLogin("google", false)
		return nil, nil, err
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.recordLogin("google", true)
	return user, session, nil
}

// resolveFederatedUser はアサーションからアカウントを特定する。
// 一意性制約との競合（同じアカウントを同時に作成・リンクしようとした場合）は
// 「勝者の行を再検索する」ことで回復し、エラーとして表面化させない。
func (s *Service) resolveFederatedUser(ctx context.Context, assertion *FederatedAssertion) (*model.User, error) {
	// 1. google_idで既存ユーザーを検索
	user, err := s.userRepo.FindByGoogleID(ctx, assertion.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google ID: %w", err)
	}
	if user != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("method", "google"),
		)
		return user, nil
	}

	// 2. emailで既存ユーザーを検索（ローカル登録済みアカウントのリンク）
	email := normalizeEmail(assertion.Email)
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user != nil {
		if err := s.userRepo.UpdateGoogleID(ctx, user.ID, assertion.SubjectID); err != nil {
			if errors.Is(err, model.ErrConflict) {
				// 同時リンクに敗れた: 勝者の行を検索し直す
				return s.lookupAfterConflict(ctx, assertion)
			}
			return nil, fmt.Errorf("failed to link google ID: %w", err)
		}

		user.GoogleID = &assertion.SubjectID
		slog.Info("linked google account to existing user",
			slog.String("user_id", user.ID),
		)
		return user, nil
	}

	// 3. 新規ユーザーを作成
	// password_hashにはローカル認証が構造上成立しないプレースホルダーを格納する
	placeholder, err := s.verifier.PlaceholderHash()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         assertion.DisplayName,
		PasswordHash: placeholder,
		GoogleID:     &assertion.SubjectID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, model.ErrConflict) {
			// 同時作成に敗れた: 勝者の行を検索し直す
			return s.lookupAfterConflict(ctx, assertion)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.recordSignup("google")
	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("method", "google"),
	)
	return newUser, nil
}

// lookupAfterConflict は一意性制約との競合に敗れた後、勝者の行を取得する。
// 競合はgoogle_id由来（同時リンク/同時作成）かemail由来（同時サインアップ）の
// いずれかなので、両方の順で検索する。
func (s *Service) lookupAfterConflict(ctx context.Context, assertion *FederatedAssertion) (*model.User, error) {
	user, err := s.userRepo.FindByGoogleID(ctx, assertion.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user after conflict: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.FindByEmail(ctx, normalizeEmail(assertion.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user after conflict: %w", err)
	}
	if user == nil {
		// 制約違反を報告した行が見つからないのは想定外
		return nil, fmt.Errorf("conflicting user not found after uniqueness violation")
	}

	// 勝者がローカルサインアップだった場合はリンクを試みる
	if !user.IsLinkedToGoogle() {
		if err := s.userRepo.UpdateGoogleID(ctx, user.ID, assertion.SubjectID); err != nil {
			if !errors.Is(err, model.ErrConflict) {
				return nil, fmt.Errorf("failed to link google ID after conflict: %w", err)
			}
			// リンク自体も競合した: subject IDは既に別の行が保持している。
			// ストアが拒否したリンクをメモリ上で捏造せず、保持者の行を返す
			linked, err := s.userRepo.FindByGoogleID(ctx, assertion.SubjectID)
			if err != nil {
				return nil, fmt.Errorf("failed to find user after conflict: %w", err)
			}
			if linked == nil {
				return nil, fmt.Errorf("conflicting user not found after uniqueness violation")
			}
			return linked, nil
		}
		user.GoogleID = &assertion.SubjectID
	}

	return user, nil
}

// Logout はセッションを破棄する。
// 既に存在しないセッションの破棄もエラーにならない（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionDestroyed()
	}
	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// ResolveSession はセッションIDからユーザーを解決する。
// セッションが存在しない・期限切れ・ユーザーが消えている場合はいずれも
// (nil, nil)を返し、呼び出し元が理由を区別できないようにする。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// normalizeEmail はメールアドレスを比較用に正規化する。
// emailはローカル登録とGoogle連携を結合する唯一のキーのため、
// 大文字小文字の揺れで重複アカウントが生まれないようにする。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) recordLogin(method string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(method, success)
	}
}

func (s *Service) recordSignup(method string) {
	if s.metrics != nil {
		s.metrics.RecordSignup(method)
	}
}

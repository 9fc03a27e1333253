// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/weatherman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// すべての操作は単一ステートメントのアトミックな点参照・点更新であり、
// email / google_id の一意性はアプリケーションの事前チェックではなく
// ストア側の一意性制約によって保証される。
// 一意性制約違反はmodel.ErrConflictをラップしたエラーとして報告する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogle subject IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成する。
	// email または google_id の一意性制約違反時はmodel.ErrConflictを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateGoogleID は既存ユーザーにGoogle subject IDを紐付ける。
	// 他ユーザーが同じgoogle_idを既に保持している場合はmodel.ErrConflictを返す。
	UpdateGoogleID(ctx context.Context, userID, googleID string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。
	// 存在しない場合と期限切れの場合はいずれもnilを返し、両者を区別しない。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにならない（冪等）。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	// クリーンアップワーカー用。有効期限判定はFindByIDが行うため、
	// このジョブの実行有無はセッションの有効性に影響しない。
	DeleteExpired(ctx context.Context) (int64, error)
}

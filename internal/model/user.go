// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ローカル登録（メール+パスワード）とGoogle連携登録の両方で同一の構造を使用し、
// 1人の人間につきレコードは必ず1件（emailで一意）となる。
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	// GoogleID はGoogleアカウントのsubject ID。未連携の場合はnil。
	// 非nilの場合はシステム全体で一意。
	GoogleID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLinkedToGoogle はGoogleアカウントと連携済みかどうかを返す。
func (u *User) IsLinkedToGoogle() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}

// Session はユーザーのログインセッションを表す。
// クライアントにはCookie経由で不透明なIDのみが渡る。
// 有効期限は作成時刻からの固定TTL（スライディング延長は行わない）。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

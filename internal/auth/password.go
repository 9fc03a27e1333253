package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// placeholderPrefix はGoogle連携のみで作成されたアカウントの
// password_hash列に格納されるプレースホルダーの接頭辞。
// bcryptハッシュ（$2a$等で始まる）としては不正な形式のため、
// この値に対する照合はどんな入力でも成立しない。
const placeholderPrefix = "!federated!"

// PasswordVerifier はパスワードの一方向ハッシュ化と照合を提供する。
// 照合はbcryptの定数時間比較に委譲する。状態を持たない。
type PasswordVerifier struct {
	cost int
}

// NewPasswordVerifier はデフォルトコストのPasswordVerifierを生成する。
func NewPasswordVerifier() *PasswordVerifier {
	return &PasswordVerifier{cost: bcrypt.DefaultCost}
}

// Hash はパスワードをbcryptでハッシュ化する。
func (v *PasswordVerifier) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はパスワードが保存済みハッシュと一致するかを検証する。
// プレースホルダーハッシュ（Google連携のみのアカウント）は構造上
// いかなる入力とも一致しない。ローカルパスワードでのログインを
// 不可能にする保証は乱数の衝突耐性ではなくこの判定が担う。
func (v *PasswordVerifier) Verify(hash, password string) bool {
	if strings.HasPrefix(hash, placeholderPrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PlaceholderHash はGoogle連携で作成するアカウント用のプレースホルダーを生成する。
// password_hash列のNOT NULL制約を満たすためだけに存在し、
// ユーザーに送信されることも入力されることもない。
func (v *PasswordVerifier) PlaceholderHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate placeholder secret: %w", err)
	}
	return placeholderPrefix + hex.EncodeToString(b), nil
}

// IsPlaceholder はハッシュがプレースホルダーかどうかを返す。
func IsPlaceholder(hash string) bool {
	return strings.HasPrefix(hash, placeholderPrefix)
}

package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash はユーザー不在時のタイミング攻撃対策用の比較対象。
// 実在しないパスワードのbcryptハッシュで、必ず比較に失敗する。
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// HashPassword はbcryptでパスワードをハッシュ化する。
// costが範囲外の場合はbcrypt.DefaultCostを使用する。
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword はハッシュと平文パスワードを比較する。
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CompareDummy はユーザーが存在しない場合でもbcrypt比較1回分の時間を消費する。
// ログイン失敗の応答時間からユーザーの存在が推測されることを防ぐ。
func CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// TotalXP、Level、TotalLessonsCompletedの集計値はProgress Tracker経由でのみ更新される。
// Levelはtotal_xpから決定的に導出されるキャッシュであり、真実のソースではない。
type User struct {
	ID                    string
	Username              string
	PasswordHash          string
	TotalXP               int
	Level                 int
	TotalLessonsCompleted int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Session はユーザーのログインセッションを表す。
// Cookieが使えないクライアントのため、BrowserIdentity（ブラウザ識別子）から
// サーバー側でセッションを逆引きする設計になっている。
// 同一BrowserIdentityに対して有効なセッションは常に最大1つ。
type Session struct {
	Token           string
	UserID          string
	BrowserIdentity string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// IsExpired はセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

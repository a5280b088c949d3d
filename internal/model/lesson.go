package model

import "time"

// Lesson はサイバーセキュリティ演習レッスンを表す。
// Bodyはコンテンツパイプラインが生成したHTMLで、配信時にサニタイズされる。
// コア（Progress Tracker）が参照するのはDifficulty、BaseXPReward、MasteryThresholdのみ。
type Lesson struct {
	ID               string
	Slug             string
	Title            string
	Body             string
	Category         string
	Difficulty       int
	BaseXPReward     int
	MasteryThreshold int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// XPReward は1回の初回完了で付与されるXPを返す。
// 難易度を倍率としてベース報酬に掛ける。
func (l *Lesson) XPReward() int {
	return l.BaseXPReward * l.Difficulty
}

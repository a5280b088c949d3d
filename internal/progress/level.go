package progress

// LevelTable はXP閾値からレベルを導出するテーブル。
// thresholds[i]は「レベルi+2に到達するための最低XP」を表す。
// 例: [1000, 3000, 7000, 15000, 30000] の場合、
// total_xp < 1000 → レベル1、1000以上3000未満 → 2、…、30000以上 → 6。
type LevelTable struct {
	thresholds []int
}

// NewLevelTable はLevelTableを生成する。thresholdsは正の昇順であることを前提とする
// （configが読み込み時に検証する）。
func NewLevelTable(thresholds []int) LevelTable {
	return LevelTable{thresholds: thresholds}
}

// ComputeLevel はtotal_xpからレベルを決定的に導出する純粋関数。
// 保存されているlevelカラムはこの関数の結果のキャッシュにすぎず、
// いつでもtotal_xpだけから再導出できる。
func (t LevelTable) ComputeLevel(totalXP int) int {
	level := 1
	for _, threshold := range t.thresholds {
		if totalXP < threshold {
			return level
		}
		level++
	}
	return level
}

// MaxLevel は到達可能な最大レベルを返す。
func (t LevelTable) MaxLevel() int {
	return len(t.thresholds) + 1
}

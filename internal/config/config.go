package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionTTL            time.Duration // セッションの有効期間
	SessionResolveTimeout time.Duration // ブラウザ識別子からのセッション解決に許容する時間
	SweepInterval         time.Duration // 期限切れセッション掃除の実行間隔

	// Progress
	CompletionScore   int           // completedと判定する最低スコア
	LevelThresholds   []int         // レベル閾値（昇順のXP境界値）
	AttemptMaxRetries int           // RecordAttemptの競合リトライ上限
	AttemptBackoff    time.Duration // 競合リトライの初回バックオフ

	// Auth
	BcryptCost int

	// Rate Limit
	RateLimitGeneral int // API全般のレート（req/min/user）
	RateLimitAttempt int // 挑戦送信のレート（req/min/user）

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// defaultLevelThresholds はレベル閾値のデフォルト値。
// total_xp < 1000 → レベル1、< 3000 → 2、< 7000 → 3、< 15000 → 4、< 30000 → 5、それ以上 → 6。
var defaultLevelThresholds = []int{1000, 3000, 7000, 15000, 30000}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 720*time.Hour)
	cfg.SessionResolveTimeout = getEnvDuration("SESSION_RESOLVE_TIMEOUT", 3*time.Second)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 1*time.Hour)
	cfg.CompletionScore = getEnvInt("COMPLETION_SCORE", 60)
	cfg.AttemptMaxRetries = getEnvInt("ATTEMPT_MAX_RETRIES", 3)
	cfg.AttemptBackoff = getEnvDuration("ATTEMPT_BACKOFF", 50*time.Millisecond)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAttempt = getEnvInt("RATE_LIMIT_ATTEMPT", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	thresholds, err := parseLevelThresholds(os.Getenv("LEVEL_XP_THRESHOLDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEVEL_XP_THRESHOLDS: %w", err)
	}
	cfg.LevelThresholds = thresholds

	if cfg.CompletionScore < 0 || cfg.CompletionScore > 100 {
		return nil, fmt.Errorf("COMPLETION_SCORE must be between 0 and 100, got %d", cfg.CompletionScore)
	}

	return cfg, nil
}

// parseLevelThresholds はカンマ区切りのXP閾値リストを解析する。
// 空文字列の場合はデフォルト値を返す。閾値は正の昇順でなければならない。
func parseLevelThresholds(raw string) ([]int, error) {
	if raw == "" {
		return defaultLevelThresholds, nil
	}

	parts := strings.Split(raw, ",")
	thresholds := make([]int, 0, len(parts))
	prev := 0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("threshold %q is not an integer", p)
		}
		if v <= prev {
			return nil, fmt.Errorf("thresholds must be positive and strictly ascending, got %v", raw)
		}
		thresholds = append(thresholds, v)
		prev = v
	}

	return thresholds, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

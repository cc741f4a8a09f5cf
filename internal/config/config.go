// Package config は環境変数（と任意の .env ファイル）からサービス設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreDriver はドキュメントストアの実装の種類。
type StoreDriver string

const (
	// StoreMongo はMongoDBを使用する。
	StoreMongo StoreDriver = "mongo"
	// StoreSQLite はローカルのSQLiteファイルを使用する。
	StoreSQLite StoreDriver = "sqlite"
)

// DefaultAllowedOrigins はCORSで資格情報付きリクエストを許可する既定のオリジン。
var DefaultAllowedOrigins = []string{
	"http://localhost:4000",
	"https://job-assignment-11.web.app",
	"https://afrin-assignment.netlify.app",
	"http://localhost:5173",
}

// Config はサービス全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行モード。"production" のときCookieをSecure/Strictにする。
	Env string

	StoreDriver StoreDriver
	SQLitePath  string

	MongoURI             string
	DBUser               string
	DBPass               string
	DBCluster            string
	AssignmentDB         string
	AssignmentCollection string
	BidDB                string
	BidCollection        string
	ConnectTimeout       time.Duration

	// AuthEnabled が偽の場合はどのルートにもトークン検証を適用しない。
	AuthEnabled bool
	TokenSecret string
	TokenTTL    time.Duration

	// AllowedOrigins が "*" だけの場合は全オリジンを許可する。
	AllowedOrigins []string
}

// IsProduction は本番モードかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AllowAllOrigins は全オリジン許可の設定かどうかを返す。
func (c *Config) AllowAllOrigins() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*"
}

// Load はカレントディレクトリの .env（存在する場合）を読み込んだ上で
// 環境変数から設定を組み立てる。すでに設定されている環境変数は上書きしない。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv はgetenvで取得した値から設定を組み立てて検証する。
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return defaultValue
	}

	authEnabled, err := strconv.ParseBool(get("AUTH_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("AUTH_ENABLEDが不正です: %w", err)
	}
	tokenTTL, err := time.ParseDuration(get("TOKEN_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTLが不正です: %w", err)
	}
	connectTimeout, err := time.ParseDuration(get("DB_CONNECT_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("DB_CONNECT_TIMEOUTが不正です: %w", err)
	}

	cfg := &Config{
		Port:                 get("PORT", "4000"),
		Env:                  get("NODE_ENV", "development"),
		StoreDriver:          StoreDriver(get("STORE_DRIVER", string(StoreMongo))),
		SQLitePath:           get("SQLITE_PATH", "assignment.db"),
		MongoURI:             get("MONGODB_URI", ""),
		DBUser:               get("DB_USER", ""),
		DBPass:               get("DB_PASS", ""),
		DBCluster:            get("DB_CLUSTER", "cluster0.vadwj9m.mongodb.net"),
		AssignmentDB:         get("ASSIGNMENT_DB", "afrinAssignment"),
		AssignmentCollection: get("ASSIGNMENT_COLLECTION", "assignmentCollection"),
		BidDB:                get("BID_DB", "assignmentDB"),
		BidCollection:        get("BID_COLLECTION", "bids"),
		ConnectTimeout:       connectTimeout,
		AuthEnabled:          authEnabled,
		TokenSecret:          getenv("ACCESS_TOKEN_SECRET"),
		TokenTTL:             tokenTTL,
		AllowedOrigins:       splitOrigins(get("ALLOWED_ORIGINS", "")),
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は設定の組み合わせを検証する。
func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" && (c.DBUser == "" || c.DBPass == "") {
			return errors.New("MONGODB_URIまたはDB_USER/DB_PASSが必要です")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATHが必要です")
		}
	default:
		return fmt.Errorf("STORE_DRIVERが不正です: %q", c.StoreDriver)
	}

	if c.AuthEnabled && c.TokenSecret == "" {
		return errors.New("AUTH_ENABLEDが真の場合はACCESS_TOKEN_SECRETが必要です")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTLは正の値である必要があります")
	}
	return nil
}

// splitOrigins はカンマ区切りのオリジン一覧を分割する。空要素は捨てる。
func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

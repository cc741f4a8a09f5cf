// 課題・提出物APIのエントリポイント。
// 設定を読み込み、ドキュメントストアに接続してからHTTPサーバーを起動する。
// ストアに接続できない場合は起動せずに終了する。
//
// "healthcheck" を引数に渡すと、起動中のサーバーとストアの疎通確認だけを行う。
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/nao1215/assignment-api/internal/api"
	"github.com/nao1215/assignment-api/internal/config"
	"github.com/nao1215/assignment-api/internal/store"
	"github.com/nao1215/assignment-api/pkg/httpclient"
	"github.com/nao1215/assignment-api/pkg/middleware"
)

// closableStore はAPIの操作に加えて切断できるストア。
type closableStore interface {
	api.Store
	Close(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := healthcheck(cfg.Port); err != nil {
			log.Fatalf("ヘルスチェックに失敗: %v", err)
		}
		return
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("ドキュメントストアへの接続に失敗: %v", err)
	}

	cookie := api.CookieLax
	if cfg.IsProduction() {
		cookie = api.CookieStrict
	}

	server := api.NewServer(cfg.Port, st, api.Options{
		EnableAuth:  cfg.AuthEnabled,
		TokenSecret: cfg.TokenSecret,
		TokenTTL:    cfg.TokenTTL,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowAll:         cfg.AllowAllOrigins(),
			AllowCredentials: true,
		},
		Cookie: cookie,
	})

	log.Printf("課題APIを起動します: :%s (store=%s, auth=%t)", cfg.Port, cfg.StoreDriver, cfg.AuthEnabled)
	if err := server.Run(); err != nil {
		if cerr := st.Close(context.Background()); cerr != nil {
			log.Printf("ドキュメントストアの切断に失敗: %v", cerr)
		}
		log.Fatalf("課題APIの起動に失敗: %v", err)
	}
}

// openStore は設定に応じたドキュメントストアを開く。
func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	if cfg.StoreDriver == config.StoreSQLite {
		return store.NewSQLite(ctx, cfg.SQLitePath)
	}
	return store.NewMongo(ctx, store.MongoConfig{
		URI:                  cfg.MongoURI,
		User:                 cfg.DBUser,
		Password:             cfg.DBPass,
		Cluster:              cfg.DBCluster,
		AppName:              "Cluster0",
		AssignmentDB:         cfg.AssignmentDB,
		AssignmentCollection: cfg.AssignmentCollection,
		BidDB:                cfg.BidDB,
		BidCollection:        cfg.BidCollection,
		ConnectTimeout:       cfg.ConnectTimeout,
	})
}

// healthcheck はローカルで起動中のサーバーの稼働と、サーバーからストアへの疎通を確認する。
func healthcheck(port string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client := httpclient.New("http://127.0.0.1:"+port, 3*time.Second)
	if err := client.Health(ctx); err != nil {
		return err
	}
	n, err := client.CountAssignments(ctx)
	if err != nil {
		return err
	}
	log.Printf("ヘルスチェック成功: assignments=%d", n)
	return nil
}

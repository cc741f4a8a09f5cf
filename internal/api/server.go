package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/assignment-api/internal/store"
	"github.com/nao1215/assignment-api/pkg/middleware"
)

// Store はハンドラが使用するドキュメントストアの操作。
// store.Mongo と store.SQLite が実装する。
type Store interface {
	InsertAssignment(ctx context.Context, raw json.RawMessage) (*store.InsertResult, error)
	ListAssignments(ctx context.Context, level string) ([]store.Document, error)
	UpsertAssignment(ctx context.Context, id string, u store.AssignmentUpdate) (*store.UpdateResult, error)
	DeleteAssignment(ctx context.Context, id string) (*store.DeleteResult, error)
	CountAssignments(ctx context.Context) (int64, error)

	InsertBid(ctx context.Context, raw json.RawMessage) (*store.InsertResult, error)
	ListPendingBids(ctx context.Context) ([]store.Document, error)
	FindBid(ctx context.Context, id string) (store.Document, error)
	UpsertBidReview(ctx context.Context, id string, r store.BidReview) (*store.UpdateResult, error)
	ListBidsByEmail(ctx context.Context, email string) ([]store.Document, error)
}

// CookiePolicy はアクセストークンCookieのセキュリティ属性。
type CookiePolicy int

const (
	// CookieLax はHttpOnly、Secureなし、SameSite=Lax。開発環境向け。
	CookieLax CookiePolicy = iota
	// CookieStrict はHttpOnly、Secure、SameSite=Strict。本番環境向け。
	CookieStrict
)

func (p CookiePolicy) secure() bool {
	return p == CookieStrict
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p == CookieStrict {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// Options はHTTPサーバーの構成。
// 認証の有無、CORSポリシー、Cookie属性をここで切り替える。
type Options struct {
	// EnableAuth が真の場合、書き込み系の課題ルートと提出物ルートにJWTAuthを適用する。
	EnableAuth bool
	// TokenSecret はアクセストークンの署名鍵。
	TokenSecret string
	// TokenTTL は /jwt で発行するトークンの有効期間。
	TokenTTL time.Duration
	// CORS はクロスオリジンポリシー。
	CORS middleware.CORSConfig
	// Cookie はアクセストークンCookieの属性。
	Cookie CookiePolicy
}

// Server は課題・提出物APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はドキュメントストア。
	store Store
	// opts はサーバーの構成。
	opts Options
}

// NewServer は新しいAPIサーバーを生成する。
func NewServer(port string, st Store, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(opts.CORS))

	s := &Server{
		router: router,
		port:   port,
		store:  st,
		opts:   opts,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is running")
	})

	// 認証不要のルート
	s.router.GET("/assignment", s.handleListAssignments())
	s.router.GET("/assignmentCount", s.handleCountAssignments())
	if s.opts.EnableAuth {
		s.router.POST("/jwt", s.handleIssueToken())
		s.router.POST("/logout", s.handleLogout())
	}

	gated := s.router.Group("")
	if s.opts.EnableAuth {
		gated.Use(middleware.JWTAuth(s.opts.TokenSecret))
	}
	{
		// 課題
		gated.POST("/assignment", s.handleCreateAssignment())
		gated.PUT("/assignment/:id", s.handleUpdateAssignment())
		gated.DELETE("/assignment/:id", s.handleDeleteAssignment())

		// 提出物
		gated.POST("/bids", s.handleCreateBid())
		gated.GET("/bids/pending", s.handleListPendingBids())
		gated.GET("/bids/:id", s.handleGetBid())
		gated.PUT("/bids/:id", s.handleReviewBid())
		gated.GET("/bid/:email", s.handleListBidsByEmail())
	}
}

// respondStoreError はストア操作のエラーをレスポンスに変換する。
// IDやボディの不正は400、それ以外は操作ごとの固定メッセージで500を返す。
func respondStoreError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		c.String(http.StatusBadRequest, "Invalid id")
	case errors.Is(err, store.ErrInvalidDocument):
		c.String(http.StatusBadRequest, "Invalid request body")
	default:
		if email := middleware.GetEmail(c); email != "" {
			log.Printf("%s: %v (email=%s)", message, err, email)
		} else {
			log.Printf("%s: %v", message, err)
		}
		c.String(http.StatusInternalServerError, message)
	}
}

// decodeStrict はリクエストボディを未知のフィールドを拒否してデコードする。
// 空のボディはすべてのフィールドが未指定の更新として扱う。
// 最初のJSON値の後ろに続きがある場合はエラーを返す。
func decodeStrict(c *gin.Context, v any) error {
	if c.Request.Body == nil {
		return nil
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("JSON値の後ろに余分なデータがあります")
	}
	return nil
}

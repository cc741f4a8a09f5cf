package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCookieName はアクセストークンを保持するCookieの名前。
const TokenCookieName = "token"

// tokenIssuer はトークンの発行者として記録する値。
const tokenIssuer = "assignment-api"

// contextKeyEmail は認証済みメールアドレスを格納するコンテキストキー。
const contextKeyEmail = "email"

// JWTClaims はアクセストークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Email は認証済みユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateJWT はメールアドレスからHS256で署名したアクセストークンを生成する。
// ttlはトークンの有効期間。
func GenerateJWT(secret, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列の署名と有効期限を検証し、クレームを返す。
// HMAC以外の署名アルゴリズムは拒否する。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("トークンが無効です")
	}
	return claims, nil
}

// JWTAuth はCookieに保存されたアクセストークンを検証するGinミドルウェアを返す。
// Cookieが無い場合と検証に失敗した場合は401を返してチェーンを中断する。
// 検証に成功した場合、コンテキストに "email" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(TokenCookieName)
		if err != nil || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "not authorized"})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}

		c.Set(contextKeyEmail, claims.Email)
		c.Next()
	}
}

// GetEmail はGinコンテキストから認証済みユーザーのメールアドレスを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetEmail(c *gin.Context) string {
	email, _ := c.Get(contextKeyEmail)
	if s, ok := email.(string); ok {
		return s
	}
	return ""
}

// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Cookieに保存されたJWTアクセストークンの検証、パニックリカバリ、
// CORS設定を含む。
package middleware

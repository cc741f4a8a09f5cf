// Package httpclient は課題・提出物APIを呼び出すクライアントを提供する。
//
// コンテナのヘルスチェックから、サーバーの稼働とストアへの疎通を確認するために使用する。
package httpclient

// Package store は課題（assignments）と提出物（bids）の2つのコレクションを
// 保持するドキュメントストアを提供する。
//
// 本番ではMongoDBに接続するMongoを使用する。ローカル開発とテストでは
// 同じ操作をSQLite上のJSONドキュメントで実装したSQLiteを使用できる。
// どちらも各操作でストアへの呼び出しを1回だけ行い、結果をそのまま返す。
package store

// Package api は課題（assignment）と提出物（bid）のREST APIを提供する。
//
// 各ルートはHTTPメソッドとリソースの組ごとにストア操作を1回だけ呼び出し、
// その結果（挿入・更新・削除の確認応答やドキュメント）をそのままJSONで返す。
// 認証の有無、CORSポリシー、Cookie属性はOptionsで切り替える。
package api

package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// healthBody はヘルスチェックルートが返す本文。
const healthBody = "Server is running"

// StatusError はAPIが2xx以外を返したことを表す。
type StatusError struct {
	// Code はHTTPステータスコード。
	Code int
	// Body はレスポンス本文。サーバーの固定エラーメッセージが入る。
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.Code, e.Body)
}

// countResponse は件数ルートのレスポンス。
type countResponse struct {
	Count int64 `json:"count"`
}

// Client は課題・提出物APIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New は新しいAPIクライアントを生成する。
// baseURLには接続先のベースURL（例: "http://localhost:4000"）を指定する。
// timeoutが0以下の場合は30秒を使う。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Health はヘルスチェックルートを呼び出し、サーバーが稼働しているかを確認する。
func (c *Client) Health(ctx context.Context) error {
	body, err := c.get(ctx, "/")
	if err != nil {
		return err
	}
	if string(body) != healthBody {
		return fmt.Errorf("想定外のヘルスチェック応答: %q", string(body))
	}
	return nil
}

// CountAssignments は課題件数を取得する。
// 認証不要でストアまで到達するルートのため、ストアの疎通確認にも使う。
func (c *Client) CountAssignments(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, "/assignmentCount")
	if err != nil {
		return 0, err
	}
	var res countResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return res.Count, nil
}

// get はGETリクエストを送り、2xxならレスポンス本文を返す。
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/userdir/internal/retry"
)

const (
	// restPathPrefix はPostgREST APIのパスプレフィックス。
	restPathPrefix = "/rest/v1"
	// maxResponseSize はレスポンスボディの読み取り上限（4MB）。
	maxResponseSize = 4 << 20
	// maxErrorMessage はログとエラーに含めるレスポンス本文の最大長。
	maxErrorMessage = 512
)

// REST はPostgREST互換のHTTP APIを使用するバックエンド実装。
// サービスロールキーで認証し、行レベルの制限を受けない。
type REST struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	serviceKey string
}

// NewREST はRESTバックエンドを生成する。
// baseURLはプロジェクトURL（例: "https://xyz.supabase.co"）を指定する。
func NewREST(httpClient *http.Client, logger *slog.Logger, baseURL, serviceKey string) (*REST, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ベースURLのスキームが不正です: %q", baseURL)
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("サービスロールキーが設定されていません")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &REST{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    u.String(),
		serviceKey: serviceKey,
	}, nil
}

func (c *REST) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("User-Agent", "userdir/1.0")
}

// CallProcedure は POST /rest/v1/rpc/{name} を呼び出し、レスポンスボディをそのまま返す。
func (c *REST) CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error) {
	if !validIdentifier(name) {
		return nil, retry.Permanent(&Error{Procedure: name, Message: "invalid procedure name"})
	}
	if params == nil {
		params = Params{}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, retry.Permanent(&Error{Procedure: name, Message: "failed to encode params", Err: err})
	}

	reqURL := c.baseURL + restPathPrefix + "/rpc/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("リモートプロシージャの呼び出しに失敗しました",
			slog.String("procedure", name),
			slog.String("error", err.Error()),
		)
		return nil, &Error{Procedure: name, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Procedure: name, Message: "failed to read response body", Err: err}
	}

	if err := c.checkStatus(name, resp.StatusCode, payload); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(payload), nil
}

// Count は HEAD /rest/v1/{table} に Prefer: count=exact を付けて呼び出し、
// Content-Range ヘッダーの総件数を返す。
func (c *REST) Count(ctx context.Context, q *CountQuery) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, retry.Permanent(&Error{Procedure: "count", Message: "invalid count query", Err: err})
	}
	target := q.Schema + "." + q.Table

	values := url.Values{}
	values.Set("select", "id")
	for _, f := range q.Filters {
		values.Add(f.Column, f.Op+"."+f.Value.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	reqURL := c.baseURL + restPathPrefix + "/" + q.Table + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Prefer", "count=exact")
	req.Header.Set("Accept-Profile", q.Schema)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("件数取得の呼び出しに失敗しました",
			slog.String("table", target),
			slog.String("error", err.Error()),
		)
		return 0, &Error{Procedure: target, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if err := c.checkStatus(target, resp.StatusCode, nil); err != nil {
		return 0, err
	}

	count, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, &Error{Procedure: target, Message: "invalid Content-Range header", Err: err}
	}
	return count, nil
}

// checkStatus はステータスコードを分類し、失敗の場合はエラーを返す。
// リトライしても結果が変わらない4xxはPermanentとしてマークする。
func (c *REST) checkStatus(target string, statusCode int, payload []byte) error {
	class := retry.ClassifyHTTPStatus(statusCode)
	if class == retry.StatusOK {
		return nil
	}

	msg := string(payload)
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	c.logger.Debug("バックエンドがエラーステータスを返しました",
		slog.String("target", target),
		slog.Int("http_status", statusCode),
	)

	err := &Error{Procedure: target, StatusCode: statusCode, Message: msg}
	if class == retry.StatusPermanent {
		return retry.Permanent(err)
	}
	return err
}

// parseContentRangeTotal は "0-24/3573" や "*/0" 形式から総件数を取り出す。
func parseContentRangeTotal(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("unexpected Content-Range: %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("Content-Range does not include an exact count: %q", header)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("unexpected Content-Range total %q: %w", total, err)
	}
	return n, nil
}

// compile-time interface check
var _ Client = (*REST)(nil)

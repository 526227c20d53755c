// Package generator は上流の記事生成パイプラインへのHTTPクライアントを提供する。
// 生成の中身（モデル・プロンプト）は本エンジンの管轄外であり、
// 記事の依頼とタイトル再生成の2操作のみを公開する。
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pubplan/internal/model"
)

// maxArticlesPerRequest は1リクエストあたりの最大生成件数。
const maxArticlesPerRequest = 20

// Client は記事生成APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは生成APIのベースURL（例: "https://generator.internal:8443"）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// generateRequest は記事生成APIへのリクエストボディ。
type generateRequest struct {
	StoreID string `json:"store_id"`
	Count   int    `json:"count"`
}

// generateResponse は記事生成APIのレスポンスボディ。
type generateResponse struct {
	Articles []struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"articles"`
}

// RequestArticles は指定件数の記事生成を依頼する。
// 件数は1〜20件の範囲。返る本文はサニタイズされていないHTML。
func (c *Client) RequestArticles(ctx context.Context, storeID string, count int) ([]model.GeneratedArticle, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > maxArticlesPerRequest {
		return nil, fmt.Errorf("生成件数が上限を超えています: %d > %d", count, maxArticlesPerRequest)
	}

	payload, err := json.Marshal(generateRequest{StoreID: storeID, Count: count})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	body, err := c.post(ctx, "/v1/articles/generate", payload)
	if err != nil {
		return nil, model.NewGeneratorFailedError(err.Error())
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("記事生成APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewGeneratorFailedError("レスポンスJSONのパースに失敗しました")
	}

	articles := make([]model.GeneratedArticle, 0, len(result.Articles))
	for _, a := range result.Articles {
		articles = append(articles, model.GeneratedArticle{Title: a.Title, Body: a.Body})
	}
	return articles, nil
}

// regenerateTitleRequest はタイトル再生成APIへのリクエストボディ。
type regenerateTitleRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// regenerateTitleResponse はタイトル再生成APIのレスポンスボディ。
type regenerateTitleResponse struct {
	Title string `json:"title"`
}

// RegenerateTitle は既存記事の本文をもとに新しいタイトルを生成する。
func (c *Client) RegenerateTitle(ctx context.Context, title, body string) (string, error) {
	payload, err := json.Marshal(regenerateTitleRequest{Title: title, Body: body})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	respBody, err := c.post(ctx, "/v1/articles/regenerate-title", payload)
	if err != nil {
		return "", model.NewGeneratorFailedError(err.Error())
	}

	var result regenerateTitleResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.logger.Error("タイトル再生成APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", model.NewGeneratorFailedError("レスポンスJSONのパースに失敗しました")
	}
	if result.Title == "" {
		return "", model.NewGeneratorFailedError("空のタイトルが返されました")
	}
	return result.Title, nil
}

// post はJSONボディをPOSTしてレスポンスボディを返す。
func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pubplan/1.0 Publish Scheduler")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("記事生成APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("記事生成APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("記事生成APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}

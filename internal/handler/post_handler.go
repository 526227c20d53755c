// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pubplan/internal/model"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// ListByStatus はストアの記事一覧をステータスで絞り込んで返す。
	ListByStatus(ctx context.Context, storeID string, status model.PostStatus) ([]model.Post, error)
	// CheckScheduleConflicts は候補日時の衝突を深刻度付きで返す。
	CheckScheduleConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.ConflictRecord, error)
	// Schedule は記事を指定日時で公開予約する。
	Schedule(ctx context.Context, storeID, postID string, at time.Time, confirmed bool) (*model.Post, error)
}

// PostHandler は記事管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// postResponse は記事情報のAPIレスポンス。
type postResponse struct {
	ID            string  `json:"id"`
	StoreID       string  `json:"store_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	QueuePosition int     `json:"queue_position"`
	ScheduledAt   *string `json:"scheduled_at"`
	PublishedAt   *string `json:"published_at"`
}

// scheduleRequest は公開予約リクエストのボディ。
type scheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
	Confirmed   bool   `json:"confirmed"`
}

// conflictCheckRequest は衝突チェックリクエストのボディ。
type conflictCheckRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

// conflictRecordResponse は衝突レコードのAPIレスポンス。
type conflictRecordResponse struct {
	TargetDateKey string `json:"target_date_key"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
}

// ListPosts はストアの記事一覧を返す。
// GET /api/stores/:storeID/posts?status=scheduled
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	status := model.PostStatus(r.URL.Query().Get("status"))

	posts, err := h.service.ListByStatus(r.Context(), storeID, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"posts": toPostResponses(posts),
	})
}

// CheckConflicts は候補日時のスケジュール衝突を返す。
// POST /api/stores/:storeID/posts/:postID/conflicts
func (h *PostHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	postID := chi.URLParam(r, "postID")

	var req conflictCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeFormatError(req.ScheduledAt))
		return
	}

	records, err := h.service.CheckScheduleConflicts(r.Context(), storeID, postID, at)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]conflictRecordResponse, 0, len(records))
	requiresConfirmation := false
	for _, rec := range records {
		out = append(out, conflictRecordResponse{
			TargetDateKey: rec.TargetDateKey,
			Severity:      string(rec.Severity),
			Message:       rec.Message,
		})
		if rec.Severity == model.ConflictSeverityHigh {
			requiresConfirmation = true
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"conflicts":             out,
		"requires_confirmation": requiresConfirmation,
	})
}

// Schedule は記事を公開予約する。
// POST /api/stores/:storeID/posts/:postID/schedule
func (h *PostHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	postID := chi.URLParam(r, "postID")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeFormatError(req.ScheduledAt))
		return
	}

	post, err := h.service.Schedule(r.Context(), storeID, postID, at, req.Confirmed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPostResponse(*post))
}

// toPostResponse はドメインモデルをAPIレスポンスへ変換する。
func toPostResponse(p model.Post) postResponse {
	return postResponse{
		ID:            p.ID,
		StoreID:       p.StoreID,
		Title:         p.Title,
		Status:        string(p.Status),
		QueuePosition: p.QueuePosition,
		ScheduledAt:   formatTimePtr(p.ScheduledAt),
		PublishedAt:   formatTimePtr(p.PublishedAt),
	}
}

func toPostResponses(posts []model.Post) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスへ変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidTimeFormat, model.ErrCodeInvalidWeekdaySet, model.ErrCodeInvalidStatus:
		return http.StatusBadRequest
	case model.ErrCodeBelowMinimum, model.ErrCodeExceedsMaximum:
		return http.StatusUnprocessableEntity
	case model.ErrCodePlanLimitViolation, model.ErrCodeSettingsForbidden:
		return http.StatusForbidden
	case model.ErrCodeQueueOrderConflict, model.ErrCodeQueueBusy, model.ErrCodeAlreadyPublished:
		return http.StatusConflict
	case model.ErrCodeConfirmationRequired:
		return http.StatusConflict
	case model.ErrCodePostNotFound, model.ErrCodeStoreNotFound:
		return http.StatusNotFound
	case model.ErrCodeGeneratorFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/queue"
)

// QueueMetricsInterface はキュー充足状況の取得インターフェース。
type QueueMetricsInterface interface {
	// Metrics はストアのキュー充足状況を返す。
	Metrics(ctx context.Context, storeID string) (*model.QueueMetrics, error)
}

// QueueHandler はキュー管理のHTTPハンドラー。
// ストアごとのリコンサイラを介してキューを操作する。
type QueueHandler struct {
	manager *queue.Manager
	metrics QueueMetricsInterface
}

// NewQueueHandler はQueueHandlerを生成する。
func NewQueueHandler(manager *queue.Manager, metrics QueueMetricsInterface) *QueueHandler {
	return &QueueHandler{manager: manager, metrics: metrics}
}

// reorderRequest はキュー並び替えリクエストのボディ。
type reorderRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

// moveRequest は1件移動リクエストのボディ。
type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// queueResponse はキューのAPIレスポンス。
type queueResponse struct {
	Posts []postResponse `json:"posts"`
	State string         `json:"state"`
}

// GetQueue はストアのキューを現在の順序で返す。
// GET /api/stores/:storeID/queue
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	reconciler := h.manager.Get(chi.URLParam(r, "storeID"))

	posts, err := reconciler.Load(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, queueResponse{
		Posts: toPostResponses(posts),
		State: string(reconciler.State()),
	})
}

// Reorder はキュー全体の並び替えを適用する。
// PUT /api/stores/:storeID/queue/order
func (h *QueueHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if len(req.OrderedIDs) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "並び順のIDリストが空です。",
			Category: "validation",
			Action:   "キュー全体のIDを並び順で指定してください。",
		})
		return
	}

	reconciler := h.manager.Get(chi.URLParam(r, "storeID"))
	posts, err := reconciler.Reorder(r.Context(), req.OrderedIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, queueResponse{
		Posts: toPostResponses(posts),
		State: string(reconciler.State()),
	})
}

// Move はドラッグ操作による1件移動を適用する。
// POST /api/stores/:storeID/queue/move
func (h *QueueHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	reconciler := h.manager.Get(chi.URLParam(r, "storeID"))
	posts, err := reconciler.MoveItem(r.Context(), req.From, req.To)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, queueResponse{
		Posts: toPostResponses(posts),
		State: string(reconciler.State()),
	})
}

// RegenerateTitle はキュー内記事のタイトル再生成を依頼する。
// POST /api/stores/:storeID/queue/:postID/regenerate-title
func (h *QueueHandler) RegenerateTitle(w http.ResponseWriter, r *http.Request) {
	reconciler := h.manager.Get(chi.URLParam(r, "storeID"))

	if err := reconciler.RegenerateTitle(r.Context(), chi.URLParam(r, "postID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Metrics はストアのキュー充足状況を返す。
// 取得した充足状況はリコンサイラへも通知され、目標未満が続く場合の
// デバウンス付き自動補充の契機となる。
// GET /api/stores/:storeID/queue/metrics
func (h *QueueHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	m, err := h.metrics.Metrics(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.manager.Get(storeID).NotifyMetrics(*m)

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"target_count":  m.TargetCount,
		"current_count": m.CurrentCount,
		"needs_refill":  m.NeedsRefill,
	})
}

// Refill は手動契機のキュー補充を実行する。
// POST /api/stores/:storeID/queue/refill
func (h *QueueHandler) Refill(w http.ResponseWriter, r *http.Request) {
	reconciler := h.manager.Get(chi.URLParam(r, "storeID"))

	result, err := reconciler.Refill(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"created_count": result.CreatedCount,
	})
}

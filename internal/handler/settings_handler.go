package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/settings"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	// Load はストアの定期公開設定を現在プランの制限とあわせて返す。
	Load(ctx context.Context, storeID string) (*settings.LoadResult, error)
	// Save は定期公開設定を検証して保存する。
	Save(ctx context.Context, storeID string, weekdays []int, timeOfDay string) (*model.FrequencySettings, error)
}

// SettingsHandler は定期公開設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// saveSettingsRequest は設定保存リクエストのボディ。
type saveSettingsRequest struct {
	SelectedWeekdays []int  `json:"selected_weekdays"`
	TimeOfDay        string `json:"time_of_day"`
}

// settingsResponse は設定情報のAPIレスポンス。
type settingsResponse struct {
	IntervalKind        string `json:"interval_kind"`
	ArticlesPerInterval int    `json:"articles_per_interval"`
	SelectedWeekdays    []int  `json:"selected_weekdays"`
	TimeOfDay           string `json:"time_of_day"`
}

// planResponse はプラン制限のAPIレスポンス。
type planResponse struct {
	DisplayName     string `json:"display_name"`
	ArticlesPerWeek int    `json:"articles_per_week"`
	MinDays         int    `json:"min_days"`
	MaxDays         int    `json:"max_days"`
}

// GetSettings はストアの定期公開設定とプラン制限を返す。
// 保存済み設定が現在プランの上限を超えていた場合、置換済みの設定と
// warningフィールドを返す。
// GET /api/stores/:storeID/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Load(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body := map[string]any{
		"plan": planResponse{
			DisplayName:     result.Plan.DisplayName,
			ArticlesPerWeek: result.Plan.ArticlesPerWeek,
			MinDays:         result.Plan.MinDays,
			MaxDays:         result.Plan.MaxDays,
		},
	}
	if result.Settings != nil {
		body["settings"] = toSettingsResponse(*result.Settings)
	}
	if result.Warning != nil {
		body["warning"] = apiErrorResponse{
			Code:     result.Warning.Code,
			Message:  result.Warning.Message,
			Category: result.Warning.Category,
			Action:   result.Warning.Action,
		}
	}

	writeJSONResponse(w, http.StatusOK, body)
}

// SaveSettings は定期公開設定を保存する。
// PUT /api/stores/:storeID/settings
func (h *SettingsHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req saveSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	saved, err := h.service.Save(r.Context(), chi.URLParam(r, "storeID"), req.SelectedWeekdays, req.TimeOfDay)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSettingsResponse(*saved))
}

func toSettingsResponse(s model.FrequencySettings) settingsResponse {
	return settingsResponse{
		IntervalKind:        string(s.IntervalKind),
		ArticlesPerInterval: s.ArticlesPerInterval,
		SelectedWeekdays:    s.SelectedWeekdays,
		TimeOfDay:           s.TimeOfDay,
	}
}

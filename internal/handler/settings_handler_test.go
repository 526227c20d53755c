package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/settings"
)

// mockSettingsService はSettingsServiceInterfaceのモック実装。
type mockSettingsService struct {
	loadFn func(ctx context.Context, storeID string) (*settings.LoadResult, error)
	saveFn func(ctx context.Context, storeID string, weekdays []int, timeOfDay string) (*model.FrequencySettings, error)
}

func (m *mockSettingsService) Load(ctx context.Context, storeID string) (*settings.LoadResult, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, storeID)
	}
	return &settings.LoadResult{}, nil
}

func (m *mockSettingsService) Save(ctx context.Context, storeID string, weekdays []int, timeOfDay string) (*model.FrequencySettings, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, storeID, weekdays, timeOfDay)
	}
	return nil, nil
}

func starterPlan() model.PlanFrequencyConfig {
	return model.PlanFrequencyConfig{ArticlesPerWeek: 3, MinDays: 1, MaxDays: 3, DisplayName: "スターター"}
}

// --- GET /api/stores/{storeID}/settings テスト ---

func TestSettingsHandler_GetSettings_設定未保存でもプラン制限が返る(t *testing.T) {
	svc := &mockSettingsService{
		loadFn: func(_ context.Context, storeID string) (*settings.LoadResult, error) {
			if storeID != "store-1" {
				t.Errorf("storeID = %q, want %q", storeID, "store-1")
			}
			return &settings.LoadResult{Plan: starterPlan()}, nil
		},
	}
	h := NewSettingsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/stores/store-1/settings", nil)
	req = withChiURLParams(req, map[string]string{"storeID": "store-1"})
	w := httptest.NewRecorder()

	h.GetSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", w.Code)
	}

	var body struct {
		Plan     *planResponse     `json:"plan"`
		Settings *settingsResponse `json:"settings"`
		Warning  *apiErrorResponse `json:"warning"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if body.Plan == nil || body.Plan.MaxDays != 3 {
		t.Errorf("プラン制限が一致しません: %+v", body.Plan)
	}
	if body.Settings != nil {
		t.Errorf("未保存のはずのsettingsが返されています: %+v", body.Settings)
	}
	if body.Warning != nil {
		t.Errorf("warningが返されています: %+v", body.Warning)
	}
}

func TestSettingsHandler_GetSettings_ダウングレード超過時はwarning付きで返る(t *testing.T) {
	svc := &mockSettingsService{
		loadFn: func(_ context.Context, _ string) (*settings.LoadResult, error) {
			cfg := starterPlan()
			return &settings.LoadResult{
				Settings: &model.FrequencySettings{
					IntervalKind:        model.IntervalKindWeekly,
					ArticlesPerInterval: 3,
					SelectedWeekdays:    []int{0, 1, 2},
					TimeOfDay:           "09:00",
				},
				Plan:    cfg,
				Warning: model.NewPlanLimitViolationError(cfg, 5),
			}, nil
		},
	}
	h := NewSettingsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/stores/store-1/settings", nil)
	req = withChiURLParams(req, map[string]string{"storeID": "store-1"})
	w := httptest.NewRecorder()

	h.GetSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", w.Code)
	}

	var body struct {
		Settings *settingsResponse `json:"settings"`
		Warning  *apiErrorResponse `json:"warning"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if body.Settings == nil || len(body.Settings.SelectedWeekdays) != 3 {
		t.Errorf("置換済み設定が一致しません: %+v", body.Settings)
	}
	if body.Warning == nil || body.Warning.Code != model.ErrCodePlanLimitViolation {
		t.Errorf("warningが一致しません: %+v", body.Warning)
	}
}

func TestSettingsHandler_GetSettings_ストア未存在は404を返す(t *testing.T) {
	svc := &mockSettingsService{
		loadFn: func(_ context.Context, storeID string) (*settings.LoadResult, error) {
			return nil, model.NewStoreNotFoundError(storeID)
		},
	}
	h := NewSettingsHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/stores/missing/settings", nil)
	req = withChiURLParams(req, map[string]string{"storeID": "missing"})
	w := httptest.NewRecorder()

	h.GetSettings(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("ステータスコードが一致しません: got %d", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeStoreNotFound {
		t.Errorf("エラーコードが一致しません: %q", body["code"])
	}
}

// --- PUT /api/stores/{storeID}/settings テスト ---

func TestSettingsHandler_SaveSettings_保存結果が返る(t *testing.T) {
	svc := &mockSettingsService{
		saveFn: func(_ context.Context, _ string, weekdays []int, timeOfDay string) (*model.FrequencySettings, error) {
			if len(weekdays) != 3 || timeOfDay != "14:00" {
				t.Errorf("引数が一致しません: weekdays=%v timeOfDay=%q", weekdays, timeOfDay)
			}
			return &model.FrequencySettings{
				IntervalKind:        model.IntervalKindWeekly,
				ArticlesPerInterval: 3,
				SelectedWeekdays:    []int{0, 2, 4},
				TimeOfDay:           "14:00",
			}, nil
		},
	}
	h := NewSettingsHandler(svc)

	body := `{"selected_weekdays": [4, 0, 2], "time_of_day": "14:00"}`
	req := httptest.NewRequest(http.MethodPut, "/api/stores/store-1/settings", bytes.NewBufferString(body))
	req = withChiURLParams(req, map[string]string{"storeID": "store-1"})
	w := httptest.NewRecorder()

	h.SaveSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコードが一致しません: got %d", w.Code)
	}

	var resp settingsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if resp.TimeOfDay != "14:00" || resp.ArticlesPerInterval != 3 {
		t.Errorf("保存結果が一致しません: %+v", resp)
	}
}

func TestSettingsHandler_SaveSettings_プラン上限超過は422を返す(t *testing.T) {
	svc := &mockSettingsService{
		saveFn: func(_ context.Context, _ string, weekdays []int, _ string) (*model.FrequencySettings, error) {
			return nil, model.NewExceedsMaximumError(starterPlan(), len(weekdays))
		},
	}
	h := NewSettingsHandler(svc)

	body := `{"selected_weekdays": [0, 1, 2, 3], "time_of_day": "09:00"}`
	req := httptest.NewRequest(http.MethodPut, "/api/stores/store-1/settings", bytes.NewBufferString(body))
	req = withChiURLParams(req, map[string]string{"storeID": "store-1"})
	w := httptest.NewRecorder()

	h.SaveSettings(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("ステータスコードが一致しません: got %d", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeExceedsMaximum {
		t.Errorf("エラーコードが一致しません: %q", body["code"])
	}
}

func TestSettingsHandler_SaveSettings_不正なボディは400を返す(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})

	req := httptest.NewRequest(http.MethodPut, "/api/stores/store-1/settings", bytes.NewBufferString("{invalid"))
	req = withChiURLParams(req, map[string]string{"storeID": "store-1"})
	w := httptest.NewRecorder()

	h.SaveSettings(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("ステータスコードが一致しません: got %d", w.Code)
	}
}

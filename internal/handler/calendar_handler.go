package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pubplan/internal/calendar"
	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/queue"
	"github.com/hitoshi/pubplan/internal/repository"
	"github.com/hitoshi/pubplan/internal/schedule"
)

// navigationMonths はカレンダーの前方ナビゲーション可能な月数。
// 下限はストア導入月の初日、上限は現在月から12か月先の月末。
const navigationMonths = 12

// CalendarHandler はカレンダービューのHTTPハンドラー。
// 予約済み・公開済み記事とキュー記事の投影を集約してビューを構築する。
type CalendarHandler struct {
	storeRepo   repository.StoreRepository
	postService PostServiceInterface
	settings    SettingsServiceInterface
	manager     *queue.Manager
	now         func() time.Time // テスト用に差し替え可能
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(
	storeRepo repository.StoreRepository,
	postService PostServiceInterface,
	settingsService SettingsServiceInterface,
	manager *queue.Manager,
) *CalendarHandler {
	return &CalendarHandler{
		storeRepo:   storeRepo,
		postService: postService,
		settings:    settingsService,
		manager:     manager,
		now:         time.Now,
	}
}

// entryResponse はカレンダーエントリのAPIレスポンス。
type entryResponse struct {
	Post postResponse `json:"post"`
	At   string       `json:"at"`
}

// dayResponse は月グリッドの1セルのAPIレスポンス。
type dayResponse struct {
	DateKey string          `json:"date_key"`
	InMonth bool            `json:"in_month"`
	IsToday bool            `json:"is_today"`
	Entries []entryResponse `json:"entries"`
}

// weekSlotResponse は週ストリップの1日分のAPIレスポンス。
type weekSlotResponse struct {
	DateKey string          `json:"date_key"`
	IsToday bool            `json:"is_today"`
	Entries []entryResponse `json:"entries"`
}

// MonthView は月グリッドビューを返す。
// GET /api/stores/:storeID/calendar/month?year=2026&month=9
func (h *CalendarHandler) MonthView(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	year, yerr := strconv.Atoi(r.URL.Query().Get("year"))
	monthNum, merr := strconv.Atoi(r.URL.Query().Get("month"))
	if yerr != nil || merr != nil || monthNum < 1 || monthNum > 12 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "年月の指定が不正です。",
			Category: "validation",
			Action:   "yearとmonth（1〜12）をクエリパラメータで指定してください。",
		})
		return
	}

	store, err := h.storeRepo.FindByID(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if store == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewStoreNotFoundError(storeID))
		return
	}

	items, err := h.collectTimedItems(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.now()
	minDate, maxDate := navigationBounds(store, now)
	days := calendar.MonthGrid(year, time.Month(monthNum), items, &minDate, &maxDate, now)

	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayResponse{
			DateKey: d.DateKey,
			InMonth: d.InMonth,
			IsToday: d.IsToday,
			Entries: toEntryResponses(d.Entries),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"days":     out,
		"min_date": calendar.DateKey(minDate),
		"max_date": calendar.DateKey(maxDate),
	})
}

// WeekView は週ストリップビューを返す。startは週内の任意の日付でよく、
// その週の月曜日へ正規化される。
// GET /api/stores/:storeID/calendar/week?start=2026-09-07
func (h *CalendarHandler) WeekView(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	start, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("start"), h.now().Location())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "週の開始日の指定が不正です。",
			Category: "validation",
			Action:   "startをYYYY-MM-DD形式で指定してください。",
		})
		return
	}

	items, err := h.collectTimedItems(r.Context(), storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 指定日の週の月曜日へ正規化する
	year, month, day := start.Date()
	weekStart := time.Date(year, month, day-schedule.FromNative(start.Weekday()), 0, 0, 0, 0, start.Location())

	slots := calendar.WeekStrip(weekStart, items, h.now())
	out := make([]weekSlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, weekSlotResponse{
			DateKey: s.DateKey,
			IsToday: s.IsToday,
			Entries: toEntryResponses(s.Entries),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"week_start": calendar.DateKey(weekStart),
		"slots":      out,
	})
}

// ListView は実効タイムスタンプを持つ全記事を新しい順で返す。
// GET /api/stores/:storeID/calendar/list
func (h *CalendarHandler) ListView(w http.ResponseWriter, r *http.Request) {
	items, err := h.collectTimedItems(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"entries": toEntryResponses(calendar.FlatList(items)),
	})
}

// collectTimedItems は予約済み・公開済み記事と、キュー記事への投影日時の
// 割り当てを集約する。投影は既存コミットメントのスロットを避け、
// キューの並び順どおりに先頭から割り当てる。設定が無いストアでは
// キュー記事は投影されない（確定タイムスタンプを持つ記事のみ表示）。
func (h *CalendarHandler) collectTimedItems(ctx context.Context, storeID string) ([]calendar.TimedItem, error) {
	scheduled, err := h.postService.ListByStatus(ctx, storeID, model.PostStatusScheduled)
	if err != nil {
		return nil, err
	}
	published, err := h.postService.ListByStatus(ctx, storeID, model.PostStatusPublished)
	if err != nil {
		return nil, err
	}
	queued, err := h.manager.Get(storeID).Load(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]calendar.TimedItem, 0, len(scheduled)+len(published)+len(queued))
	occupied := make(map[string]struct{}, len(scheduled)+len(published))
	for _, p := range append(scheduled, published...) {
		items = append(items, calendar.TimedItem{Post: p})
		if at := p.EffectiveTimestamp(nil); at != nil {
			occupied[schedule.OccupiedKey(*at)] = struct{}{}
		}
	}

	var projections []time.Time
	result, err := h.settings.Load(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if result.Settings != nil {
		projections, err = schedule.Project(schedule.ProjectionInput{
			SelectedWeekdays: result.Settings.SelectedWeekdays,
			TimeOfDay:        result.Settings.TimeOfDay,
			Count:            len(queued),
			Occupied:         occupied,
			Now:              h.now(),
		})
		if err != nil {
			return nil, err
		}
	}

	for i, p := range queued {
		item := calendar.TimedItem{Post: p}
		if i < len(projections) {
			at := projections[i]
			item.Projection = &at
		}
		items = append(items, item)
	}

	return items, nil
}

func toEntryResponses(entries []calendar.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			Post: toPostResponse(e.Post),
			At:   e.At.Format(time.RFC3339),
		})
	}
	return out
}

// navigationBounds はカレンダーのナビゲーション可能範囲を返す。
// 下限はストア導入月の初日、上限は現在月から12か月先の月末。
func navigationBounds(store *model.Store, now time.Time) (minDate, maxDate time.Time) {
	loc := now.Location()
	installed := store.InstalledAt.In(loc)
	minDate = time.Date(installed.Year(), installed.Month(), 1, 0, 0, 0, 0, loc)
	// 翌月の0日目 = 当月末日
	maxDate = time.Date(now.Year(), now.Month()+navigationMonths+1, 0, 0, 0, 0, 0, loc)
	return minDate, maxDate
}

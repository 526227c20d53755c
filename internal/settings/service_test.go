package settings

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// mockStoreRepo はrepository.StoreRepositoryのテスト用実装。
type mockStoreRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Store, error)
	listIDsFunc  func(ctx context.Context) ([]string, error)
}

func (m *mockStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockStoreRepo) ListIDs(ctx context.Context) ([]string, error) {
	if m.listIDsFunc != nil {
		return m.listIDsFunc(ctx)
	}
	return nil, nil
}

// mockSettingsStore はrepository.SettingsStoreのテスト用実装。
type mockSettingsStore struct {
	readFunc  func(ctx context.Context, storeID string) (*model.FrequencySettings, error)
	writeFunc func(ctx context.Context, storeID string, settings model.FrequencySettings) error
}

func (m *mockSettingsStore) Read(ctx context.Context, storeID string) (*model.FrequencySettings, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, storeID)
	}
	return nil, nil
}

func (m *mockSettingsStore) Write(ctx context.Context, storeID string, settings model.FrequencySettings) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, storeID, settings)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func starterStore(id string) *model.Store {
	return &model.Store{
		ID:          id,
		Name:        "テストストア",
		PlanName:    "starter",
		InstalledAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoad_未設定のストアは設定なしでプラン制限のみ返る(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{},
		newTestLogger(&buf),
	)

	result, err := svc.Load(context.Background(), "store-1")
	if err != nil {
		t.Fatalf("読み込みに失敗しました: %v", err)
	}
	if result.Settings != nil {
		t.Errorf("未設定なのに設定が返されています: %+v", result.Settings)
	}
	if result.Plan.MaxDays != 3 {
		t.Errorf("Starterプランの上限が一致しません: %d", result.Plan.MaxDays)
	}
}

func TestLoad_ダウングレード後の上限超過は安全なデフォルトへ置換される(t *testing.T) {
	// Growthプランで5日保存した後、Starterへダウングレードしたケース
	stored := &model.FrequencySettings{
		IntervalKind:        model.IntervalKindWeekly,
		ArticlesPerInterval: 5,
		SelectedWeekdays:    []int{0, 1, 2, 3, 4},
		TimeOfDay:           "09:00",
	}
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{readFunc: func(ctx context.Context, storeID string) (*model.FrequencySettings, error) {
			return stored, nil
		}},
		newTestLogger(&buf),
	)

	result, err := svc.Load(context.Background(), "store-1")
	if err != nil {
		t.Fatalf("読み込みに失敗しました: %v", err)
	}

	got := result.Settings.SelectedWeekdays
	if len(got) != 3 {
		t.Fatalf("置換後の曜日数が一致しません: %v", got)
	}
	for i, want := range []int{0, 1, 2} {
		if got[i] != want {
			t.Errorf("置換後の曜日が一致しません: got %v, want [0 1 2]", got)
			break
		}
	}

	if result.Warning == nil {
		t.Fatal("置換の警告が返されていません")
	}
	if result.Warning.Code != model.ErrCodePlanLimitViolation {
		t.Errorf("警告コードが一致しません: %s", result.Warning.Code)
	}

	// 保存データ自体は書き換えない
	if len(stored.SelectedWeekdays) != 5 {
		t.Errorf("保存済み設定が書き換えられています: %v", stored.SelectedWeekdays)
	}
}

func TestLoad_上限内の設定は警告なしでそのまま返る(t *testing.T) {
	stored := &model.FrequencySettings{
		IntervalKind:        model.IntervalKindWeekly,
		ArticlesPerInterval: 3,
		SelectedWeekdays:    []int{0, 2, 4},
		TimeOfDay:           "14:00",
	}
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{readFunc: func(ctx context.Context, storeID string) (*model.FrequencySettings, error) {
			return stored, nil
		}},
		newTestLogger(&buf),
	)

	result, err := svc.Load(context.Background(), "store-1")
	if err != nil {
		t.Fatalf("読み込みに失敗しました: %v", err)
	}
	if result.Warning != nil {
		t.Errorf("上限内なのに警告が返されています: %v", result.Warning)
	}
	if result.Settings != stored {
		t.Error("上限内の設定が置換されています")
	}
}

func TestSave_Starterプランで4日選択はエラーになり上限3が文言に含まれる(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{},
		newTestLogger(&buf),
	)

	_, err := svc.Save(context.Background(), "store-1", []int{0, 1, 2, 3}, "09:00")
	if err == nil {
		t.Fatal("上限超過でエラーが返されていません")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeExceedsMaximum {
		t.Fatalf("エラーコードが一致しません: %v", err)
	}
	if !strings.Contains(apiErr.Message, "3") {
		t.Errorf("エラー文言に上限値3が含まれていません: %s", apiErr.Message)
	}
}

func TestSave_正常系は正規化された設定が保存される(t *testing.T) {
	var written *model.FrequencySettings
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{writeFunc: func(ctx context.Context, storeID string, settings model.FrequencySettings) error {
			written = &settings
			return nil
		}},
		newTestLogger(&buf),
	)

	saved, err := svc.Save(context.Background(), "store-1", []int{4, 0, 2}, "14:00")
	if err != nil {
		t.Fatalf("保存に失敗しました: %v", err)
	}
	if written == nil {
		t.Fatal("ストアへ書き込まれていません")
	}

	// 曜日はソート済みで保存される
	for i, want := range []int{0, 2, 4} {
		if saved.SelectedWeekdays[i] != want {
			t.Errorf("正規化された曜日が一致しません: %v", saved.SelectedWeekdays)
			break
		}
	}
	if saved.ArticlesPerInterval != 3 {
		t.Errorf("週あたり記事数が一致しません: %d", saved.ArticlesPerInterval)
	}
	if saved.TimeOfDay != "14:00" {
		t.Errorf("公開時刻が一致しません: %s", saved.TimeOfDay)
	}
}

func TestSave_無効な時刻書式はエラー(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSettingsService(
		&mockStoreRepo{findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			return starterStore(id), nil
		}},
		&mockSettingsStore{},
		newTestLogger(&buf),
	)

	for _, timeOfDay := range []string{"9:00", "25:00", "14:60", "14時", ""} {
		_, err := svc.Save(context.Background(), "store-1", []int{0}, timeOfDay)
		if err == nil {
			t.Errorf("無効な時刻 %q でエラーが返されていません", timeOfDay)
			continue
		}
		apiErr, ok := err.(*model.APIError)
		if !ok || apiErr.Code != model.ErrCodeInvalidTimeFormat {
			t.Errorf("時刻 %q のエラーコードが一致しません: %v", timeOfDay, err)
		}
	}
}

func TestSave_存在しないストアはSTORE_NOT_FOUND(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSettingsService(&mockStoreRepo{}, &mockSettingsStore{}, newTestLogger(&buf))

	_, err := svc.Save(context.Background(), "missing", []int{0}, "09:00")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeStoreNotFound {
		t.Errorf("エラーコードが一致しません: %v", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/weihan/activity_service/internal/format"
	"github.com/weihan/activity_service/internal/store"
	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

var fixedNow = time.Date(2026, 2, 11, 15, 0, 0, 0, timewindow.Location)

type fakeStore struct {
	queries   int
	direction timewindow.Direction
	from, to  time.Time
	limit     int
	rows      []*models.Activity
	err       error
}

func (f *fakeStore) QueryWindow(ctx context.Context, direction timewindow.Direction, from, to time.Time, limit int) ([]*models.Activity, error) {
	f.queries++
	f.direction = direction
	f.from, f.to, f.limit = from, to, limit
	return f.rows, f.err
}

func (f *fakeStore) SummaryBySource(ctx context.Context) ([]*models.SourceSummary, error) {
	return nil, nil
}

func newTestService(repo *fakeStore) *Service {
	svc := NewService(repo, nil)
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func TestGetRecentActivitiesWindow(t *testing.T) {
	repo := &fakeStore{rows: []*models.Activity{
		{Source: "a", Title: "t", PublishDate: fixedNow.AddDate(0, 0, 3)},
	}}
	svc := newTestService(repo)

	env, err := svc.GetRecentActivities(context.Background(), 90, 20)
	if err != nil {
		t.Fatalf("GetRecentActivities: %v", err)
	}

	if repo.direction != timewindow.DirectionRecent {
		t.Errorf("direction = %s", repo.direction)
	}
	if want := time.Date(2026, 2, 11, 0, 0, 0, 0, timewindow.Location); !repo.from.Equal(want) {
		t.Errorf("from = %v, want %v", repo.from, want)
	}
	if want := time.Date(2026, 5, 12, 0, 0, 0, 0, timewindow.Location); !repo.to.Equal(want) {
		t.Errorf("to = %v, want %v", repo.to, want)
	}
	if repo.limit != 20 {
		t.Errorf("limit = %d", repo.limit)
	}
	if env.QueryType != "recent_activities" || env.TotalCount != 1 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestGetPastActivitiesWindow(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	if _, err := svc.GetPastActivities(context.Background(), 30, 20); err != nil {
		t.Fatalf("GetPastActivities: %v", err)
	}
	if repo.direction != timewindow.DirectionPast {
		t.Errorf("direction = %s", repo.direction)
	}
	if want := time.Date(2026, 1, 12, 0, 0, 0, 0, timewindow.Location); !repo.from.Equal(want) {
		t.Errorf("from = %v, want %v", repo.from, want)
	}
}

func TestDegenerateRangePerformsNoQuery(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	_, err := svc.GetRecentActivities(context.Background(), 0, 20)
	var rangeErr *timewindow.InvalidRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("got %v, want InvalidRangeError", err)
	}
	if repo.queries != 0 {
		t.Errorf("store queried %d times, want 0", repo.queries)
	}
}

func TestInvalidLimitRejected(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	for _, limit := range []int{0, -3} {
		_, err := svc.GetRecentActivities(context.Background(), 90, limit)
		var limitErr *InvalidLimitError
		if !errors.As(err, &limitErr) {
			t.Errorf("limit %d: got %v, want InvalidLimitError", limit, err)
		}
	}
	if repo.queries != 0 {
		t.Errorf("store queried %d times, want 0", repo.queries)
	}
}

func TestOversizeLimitClamped(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	if _, err := svc.GetRecentActivities(context.Background(), 90, 500); err != nil {
		t.Fatal(err)
	}
	if repo.limit != store.MaxLimit {
		t.Errorf("limit = %d, want clamped to %d", repo.limit, store.MaxLimit)
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	repo := &fakeStore{err: store.ErrUnavailable}
	svc := newTestService(repo)

	_, err := svc.GetRecentActivities(context.Background(), 90, 20)
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable; a failure must never look like an empty result", err)
	}
}

func TestExecuteToolDefaults(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	result, err := svc.ExecuteTool(context.Background(), ToolGetRecentActivities, nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if repo.limit != DefaultLimit {
		t.Errorf("limit = %d, want default %d", repo.limit, DefaultLimit)
	}
	if want := time.Date(2026, 5, 12, 0, 0, 0, 0, timewindow.Location); !repo.to.Equal(want) {
		t.Errorf("default days_ahead not applied: to = %v", repo.to)
	}
	if _, ok := result.(format.Envelope); !ok {
		t.Errorf("result type %T, want format.Envelope", result)
	}
}

func TestExecuteToolExplicitZeroRejected(t *testing.T) {
	repo := &fakeStore{}
	svc := newTestService(repo)

	_, err := svc.ExecuteTool(context.Background(), ToolGetRecentActivities,
		json.RawMessage(`{"days_ahead": 0}`))
	var rangeErr *timewindow.InvalidRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("explicit zero: got %v, want InvalidRangeError", err)
	}
	if repo.queries != 0 {
		t.Errorf("store queried %d times, want 0", repo.queries)
	}
}

func TestExecuteToolUnknownName(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.ExecuteTool(context.Background(), "drop_all_tables", nil)
	var toolErr *UnknownToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("got %v, want UnknownToolError", err)
	}
}

func TestExecuteToolTimeInfo(t *testing.T) {
	svc := newTestService(&fakeStore{})

	result, err := svc.ExecuteTool(context.Background(), ToolGetCurrentTimeInfo, nil)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := result.(timewindow.TimeInfo)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if info.CurrentDate != "2026/02/11" {
		t.Errorf("current_date = %s", info.CurrentDate)
	}
}

func TestExecuteToolDateRange(t *testing.T) {
	svc := newTestService(&fakeStore{})

	result, err := svc.ExecuteTool(context.Background(), ToolCalculateDateRange,
		json.RawMessage(`{"start_offset_days": -7, "end_offset_days": 0}`))
	if err != nil {
		t.Fatal(err)
	}
	r, ok := result.(timewindow.DateRange)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if r.StartDate != "2026/02/04" || r.EndDate != "2026/02/11" {
		t.Errorf("range = %+v", r)
	}
}

func TestToolDefinitionsMatchDispatchTable(t *testing.T) {
	svc := newTestService(&fakeStore{})

	for _, def := range ToolDefinitions() {
		_, err := svc.ExecuteTool(context.Background(), def.Function.Name, nil)
		var toolErr *UnknownToolError
		if errors.As(err, &toolErr) {
			t.Errorf("advertised tool %s is not dispatchable", def.Function.Name)
		}
	}
}

package sqldb

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

func newTestStore(t *testing.T, table string) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := NewSQLite(context.Background(), dsn, table)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLDBStore_PutAndScan(t *testing.T) {
	store := newTestStore(t, "posts")
	ctx := context.Background()

	items := map[string]domain.Record{
		"b": {"id": "b", "title": "Second", "tags": []any{"x"}},
		"a": {"id": "a", "title": "First", "meta": map[string]any{"draft": true}},
	}
	for k, item := range items {
		if err := store.Put(ctx, k, item, true); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}

	got, err := store.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []domain.Record{items["a"], items["b"]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLDBStore_EmptyScan(t *testing.T) {
	store := newTestStore(t, "posts")

	got, err := store.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Scan() = %#v, want empty slice", got)
	}
}

func TestSQLDBStore_Conditional(t *testing.T) {
	store := newTestStore(t, "posts")
	ctx := context.Background()

	if err := store.Put(ctx, "1", domain.Record{"id": "1", "v": "one"}, true); err != nil {
		t.Fatal(err)
	}

	err := store.Put(ctx, "1", domain.Record{"id": "1", "v": "two"}, true)
	e, ok := domain.AsError(err)
	if !ok || e.Code != domain.ErrorCodeConditionFailed {
		t.Fatalf("expected condition_failed, got %v", err)
	}

	if err := store.Put(ctx, "1", domain.Record{"id": "1", "v": "three"}, false); err != nil {
		t.Fatalf("upsert error = %v", err)
	}
	got, _ := store.Scan(ctx)
	if len(got) != 1 || got[0]["v"] != "three" {
		t.Errorf("expected single overwritten record, got %v", got)
	}
}

func TestSQLDBStore_Closed(t *testing.T) {
	store := newTestStore(t, "posts")
	store.Close()

	_, err := store.Scan(context.Background())
	if !domain.IsType(err, domain.ErrorTypeBackendUnavailable) {
		t.Errorf("Scan() after close = %v, want backend_unavailable", err)
	}
}

func TestNew_InvalidTable(t *testing.T) {
	for _, table := range []string{"", "posts; DROP TABLE x", "1posts"} {
		if _, err := NewSQLite(context.Background(), "file::memory:", table); err == nil {
			t.Errorf("NewSQLite(%q) expected error", table)
		}
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "oracle", DSN: "x", Table: "posts"}); err == nil {
		t.Error("New() expected error for unsupported driver")
	}
}

package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

// flakySource fails a fixed number of times before succeeding.
type flakySource struct {
	name     string
	failures int
	err      error
	calls    int
	closed   bool
}

func (s *flakySource) Name() string { return s.name }

func (s *flakySource) Execute(context.Context, domain.Operation) (*domain.Result, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return &domain.Result{Items: []domain.Record{}}, nil
}

func (s *flakySource) Close() error {
	s.closed = true
	return nil
}

func TestRetrying(t *testing.T) {
	unavailable := domain.ErrBackendUnavailable("timeout")
	rejected := domain.ErrBackendRejected("bad key")

	tests := []struct {
		name      string
		failures  int
		err       error
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first time", 0, unavailable, 2, 1, false},
		{"recovers after transient failures", 2, unavailable, 2, 3, false},
		{"gives up after retries", 5, unavailable, 2, 3, true},
		{"does not retry rejections", 5, rejected, 2, 1, true},
		{"does not retry untyped errors", 5, errors.New("boom"), 2, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &flakySource{name: "posts", failures: tt.failures, err: tt.err}
			r := NewRetrying(src, tt.retries, time.Millisecond, nil)

			_, err := r.Execute(context.Background(), domain.ScanOperation())
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if src.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", src.calls, tt.wantCalls)
			}
			if r.Name() != "posts" {
				t.Errorf("Name() = %q", r.Name())
			}
		})
	}
}

func TestRetrying_WaitsBetweenAttempts(t *testing.T) {
	src := &flakySource{name: "posts", failures: 1, err: domain.ErrBackendUnavailable("timeout")}
	r := NewRetrying(src, 1, 40*time.Millisecond, nil)

	start := time.Now()
	if _, err := r.Execute(context.Background(), domain.ScanOperation()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// Jitter keeps the first wait within half of the configured backoff.
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 20ms", elapsed)
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, want 2", src.calls)
	}
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	src := &flakySource{name: "posts", failures: 10, err: domain.ErrBackendUnavailable("timeout")}
	r := NewRetrying(src, 5, 5*time.Minute, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Execute(ctx, domain.ScanOperation())
	if !domain.IsType(err, domain.ErrorTypeBackendUnavailable) {
		t.Errorf("Execute() error = %v, want backend_unavailable", err)
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1", src.calls)
	}
}

func TestOpenAll(t *testing.T) {
	cfgs := []config.DataSourceConfig{
		{Name: "posts", Type: config.DataSourceMemory, Table: "posts", Key: "id"},
		{Name: "comments", Type: config.DataSourceSQLite, Table: "comments", Key: "id", DSN: "file:open_all?mode=memory&cache=shared"},
		{Name: "events", Type: config.DataSourceBadger, Table: "events", Key: "id", InMemory: true, Retries: 2},
	}

	set, err := OpenAll(context.Background(), cfgs, nil)
	if err != nil {
		t.Fatalf("OpenAll() error = %v", err)
	}
	defer set.Close()

	if got := set.Names(); len(got) != 3 || got[0] != "comments" {
		t.Errorf("Names() = %v", got)
	}
	events, _ := set.Get("events")
	if _, ok := events.(*Retrying); !ok {
		t.Errorf("events source = %T, want *Retrying", events)
	}

	ctx := context.Background()
	for name, src := range set.DataSources() {
		op := domain.PutItemOperation(domain.Record{"id": "1"}, domain.Record{"source": name})
		if _, err := src.Execute(ctx, op); err != nil {
			t.Fatalf("%s: PutItem error = %v", name, err)
		}
		res, err := src.Execute(ctx, domain.ScanOperation())
		if err != nil {
			t.Fatalf("%s: Scan error = %v", name, err)
		}
		if len(res.Items) != 1 || res.Items[0]["source"] != name {
			t.Errorf("%s: Scan() = %v", name, res.Items)
		}
	}
}

func TestOpenAll_ClosesOnFailure(t *testing.T) {
	cfgs := []config.DataSourceConfig{
		{Name: "posts", Type: config.DataSourceMemory, Table: "posts", Key: "id"},
		{Name: "bad", Type: "dynamo", Table: "bad", Key: "id"},
	}
	if _, err := OpenAll(context.Background(), cfgs, nil); err == nil {
		t.Fatal("OpenAll() expected error")
	}
}

func TestSet_AddAndClose(t *testing.T) {
	var set Set
	first := &flakySource{name: "posts"}
	second := &flakySource{name: "posts"}

	set.Add(first)
	set.Add(second)
	if !first.closed {
		t.Error("replaced source was not closed")
	}
	if err := set.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !second.closed {
		t.Error("source was not closed")
	}
}

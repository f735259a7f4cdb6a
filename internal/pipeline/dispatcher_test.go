package pipeline

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

func TestDispatcher_Routes(t *testing.T) {
	src := &fakeSource{name: "posts", store: true}
	d, err := NewDispatcher(nil, listResolver(t, src), createResolver(t, src, &sequenceIDs{}))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), "Mutation", "createPost",
		map[string]any{"input": map[string]any{"title": "t"}}); err != nil {
		t.Fatalf("createPost: %v", err)
	}
	got, err := d.Dispatch(context.Background(), "Query", "getPost", nil)
	if err != nil {
		t.Fatalf("getPost: %v", err)
	}
	want := []domain.Record{{"id": "id-1", "title": "t"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	wantFields := []FieldKey{
		{TypeName: "Mutation", FieldName: "createPost"},
		{TypeName: "Query", FieldName: "getPost"},
	}
	if diff := cmp.Diff(wantFields, d.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_Unresolved(t *testing.T) {
	d, err := NewDispatcher(nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	_, err = d.Dispatch(context.Background(), "Query", "missing", nil)
	if !IsUnresolved(err) {
		t.Fatalf("expected unresolved field error, got %v", err)
	}
	if _, ok := domain.AsError(err); ok {
		t.Error("unresolved field must not be a pipeline error")
	}
}

func TestDispatcher_Duplicate(t *testing.T) {
	src := &fakeSource{name: "posts"}
	if _, err := NewDispatcher(nil, listResolver(t, src), listResolver(t, src)); err == nil {
		t.Fatal("expected duplicate resolver error")
	}
}

func TestDispatcher_NilResolver(t *testing.T) {
	src := &fakeSource{name: "posts"}
	if _, err := NewDispatcher(nil, listResolver(t, src), nil); err == nil {
		t.Fatal("expected nil resolver error")
	}
}

func TestNewResolver_Validation(t *testing.T) {
	src := &fakeSource{name: "posts"}
	fn := mustFunction(t, FunctionConfig{Name: "GetPosts", DataSource: src, Request: ScanRequest, Response: ItemsResponse})

	tests := []struct {
		name string
		cfg  ResolverConfig
	}{
		{"no type", ResolverConfig{FieldName: "f", Functions: []*Function{fn}}},
		{"no field", ResolverConfig{TypeName: "Query", Functions: []*Function{fn}}},
		{"no functions", ResolverConfig{TypeName: "Query", FieldName: "f"}},
		{"nil function", ResolverConfig{TypeName: "Query", FieldName: "f", Functions: []*Function{nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResolver(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	fns := []*Function{fn}
	r := mustResolver(t, ResolverConfig{TypeName: "Query", FieldName: "f", Functions: fns})
	fns[0] = nil
	if r.Functions()[0] != fn {
		t.Error("resolver shares its function list with the caller")
	}
}

func TestNewFunction_Validation(t *testing.T) {
	src := &fakeSource{name: "posts"}
	tests := []struct {
		name string
		cfg  FunctionConfig
	}{
		{"no name", FunctionConfig{DataSource: src, Request: ScanRequest, Response: ItemsResponse}},
		{"no data source", FunctionConfig{Name: "f", Request: ScanRequest, Response: ItemsResponse}},
		{"no request", FunctionConfig{Name: "f", DataSource: src, Response: ItemsResponse}},
		{"no response", FunctionConfig{Name: "f", DataSource: src, Request: ScanRequest}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFunction(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

package index

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/devsearch/internal/db"
	"github.com/kailas-cloud/devsearch/internal/domain"
	"github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
	"github.com/kailas-cloud/devsearch/internal/domain/search/result"
)

func testRequest(t *testing.T) query.Request {
	t.Helper()
	req, err := query.KeywordRequest("lamp")
	if err != nil {
		t.Fatalf("KeywordRequest: %v", err)
	}
	return req
}

func TestDefinition(t *testing.T) {
	r := New(&mockStore{}, "devsearch:", 0)
	def, err := r.Definition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE devsearch:devices:idx ON HASH PREFIX devsearch:device: " +
		"SCHEMA title TEXT content TEXT id NUMERIC SORTABLE"
	if def.String() != want {
		t.Errorf("definition = %q, want %q", def.String(), want)
	}
}

func TestDefinition_InvalidPrefix(t *testing.T) {
	r := New(&mockStore{}, "bad prefix ", 0)
	if _, err := r.Definition(); err == nil {
		t.Fatal("expected error for index name with spaces")
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	r := New(&mockStore{
		createIndexFn: func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists },
	}, "t:", 0)
	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("existing index must be accepted, got %v", err)
	}
}

func TestEnsureIndex_Unavailable(t *testing.T) {
	r := New(&mockStore{
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			return &db.Error{Op: db.OpCreateIndex, Err: context.DeadlineExceeded}
		},
	}, "t:", 0)
	err := r.EnsureIndex(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRecreateIndex(t *testing.T) {
	for _, dropErr := range []error{nil, db.ErrIndexNotFound} {
		var calls []string
		r := New(&mockStore{
			dropIndexFn: func(_ context.Context, name string) error {
				calls = append(calls, "drop "+name)
				return dropErr
			},
			createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
				calls = append(calls, "create "+def.Name)
				return nil
			},
		}, "t:", 0)

		if err := r.RecreateIndex(context.Background()); err != nil {
			t.Fatalf("drop error %v: unexpected error: %v", dropErr, err)
		}
		want := []string{"drop t:devices:idx", "create t:devices:idx"}
		if !reflect.DeepEqual(calls, want) {
			t.Errorf("calls = %v, want %v", calls, want)
		}
	}
}

func TestRecreateIndex_DropFails(t *testing.T) {
	created := false
	r := New(&mockStore{
		dropIndexFn: func(context.Context, string) error {
			return &db.Error{Op: db.OpDropIndex, Err: errors.New("connection refused")}
		},
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			created = true
			return nil
		},
	}, "t:", 0)

	if err := r.RecreateIndex(context.Background()); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if created {
		t.Error("index must not be created after a failed drop")
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		err     error
		wantErr bool
	}{
		{"present", true, nil, false},
		{"missing", false, nil, true},
		{"engine down", false, &db.Error{Op: db.OpIndexInfo, Err: errors.New("connection refused")}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockStore{
				indexExistsFn: func(_ context.Context, name string) (bool, error) {
					if name != "t:devices:idx" {
						t.Errorf("name = %q", name)
					}
					return tc.exists, tc.err
				},
			}, "t:", 0)

			err := r.Ping(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Ping() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrIndexUnavailable) {
				t.Errorf("expected ErrIndexUnavailable, got %v", err)
			}
		})
	}
}

func TestUpsert_WritesAllFields(t *testing.T) {
	var gotKey string
	var gotFields map[string]string
	r := New(&mockStore{
		hsetFn: func(_ context.Context, key string, fields map[string]string) error {
			gotKey, gotFields = key, fields
			return nil
		},
	}, "t:", 0)

	err := r.Upsert(context.Background(), device.Document{ID: 42, Title: "", Content: "body"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "t:device:42" {
		t.Errorf("key = %q, want t:device:42", gotKey)
	}
	want := map[string]string{"id": "42", "title": "", "content": "body"}
	if !reflect.DeepEqual(gotFields, want) {
		t.Errorf("fields = %v, want %v", gotFields, want)
	}
}

func TestUpsert_Unavailable(t *testing.T) {
	r := New(&mockStore{
		hsetFn: func(context.Context, string, map[string]string) error {
			return &db.Error{Op: db.OpHSet, Err: errors.New("connection refused")}
		},
	}, "t:", 0)
	err := r.Upsert(context.Background(), device.Document{ID: 1})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestGet(t *testing.T) {
	r := New(&mockStore{
		hgetAllFn: func(_ context.Context, key string) (map[string]string, error) {
			if key != "t:device:5" {
				return nil, db.ErrKeyNotFound
			}
			return map[string]string{"id": "5", "title": "Lamp", "content": "LED"}, nil
		},
	}, "t:", 0)

	doc, err := r.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != (device.Document{ID: 5, Title: "Lamp", Content: "LED"}) {
		t.Errorf("doc = %+v", doc)
	}

	if _, err := r.Get(context.Background(), 6); !errors.Is(err, domain.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestIDs_SkipsForeignKeys(t *testing.T) {
	r := New(&mockStore{
		scanFn: func(_ context.Context, pattern string) ([]string, error) {
			if pattern != "t:device:*" {
				t.Errorf("pattern = %q", pattern)
			}
			return []string{"t:device:3", "t:device:junk", "t:device:10"}, nil
		},
	}, "t:", 0)

	ids, err := r.IDs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{3, 10}) {
		t.Errorf("ids = %v, want [3 10]", ids)
	}
}

func TestSearch_PreservesEngineOrder(t *testing.T) {
	var got *db.TextQuery
	r := New(&mockStore{
		searchTextFn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
			got = q
			return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
				{Key: "t:device:9", Score: 4.2, Fields: map[string]string{"id": "9", "title": "Smart Lamp"}},
				{Key: "t:device:2", Score: 1.1, Fields: map[string]string{"title": "Lamp", "content": "x"}},
				{Key: "t:device:bad", Score: 0.5, Fields: map[string]string{"id": "bad"}},
			}}, nil
		},
	}, "t:", 25)

	hits, err := r.Search(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IndexName != "t:devices:idx" || got.Limit != 25 || got.Scorer != db.ScorerBM25 {
		t.Errorf("query = %+v", got)
	}
	if !reflect.DeepEqual(got.ReturnFields, []string{"id", "title", "content"}) {
		t.Errorf("return fields = %v", got.ReturnFields)
	}
	want := []device.Document{
		{ID: 9, Title: "Smart Lamp"},
		{ID: 2, Title: "Lamp", Content: "x"},
	}
	if !reflect.DeepEqual(result.Documents(hits), want) {
		t.Errorf("docs = %+v, want %+v", result.Documents(hits), want)
	}
	if hits[0].Score() != 4.2 {
		t.Errorf("score = %v", hits[0].Score())
	}
}

func TestSearch_Empty(t *testing.T) {
	r := New(&mockStore{}, "t:", 0)
	hits, err := r.Search(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", hits)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"syntax", &db.Error{Op: db.OpSearch, Err: errors.Join(db.ErrQuerySyntax, errors.New("near %"))}, domain.ErrQueryTranslation},
		{"translation", domain.ErrQueryTranslation, domain.ErrQueryTranslation},
		{"missing index", db.ErrIndexNotFound, domain.ErrIndexUnavailable},
		{"timeout", &db.Error{Op: db.OpSearch, Err: context.DeadlineExceeded}, domain.ErrIndexUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockStore{
				searchTextFn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) { return nil, tc.err },
			}, "t:", 0)
			_, err := r.Search(context.Background(), testRequest(t))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

package datasource

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/ghtree/pkg/enabled"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

var _ enabled.Persister = (*SQLiteStore)(nil)

func openTemp(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmptyStore(t *testing.T) {
	records, err := openTemp(t).LoadEnabled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %v", records)
	}
}

func TestSaveReplacesSet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	first := []model.EnabledRecord{
		{NodeID: "repository:acme:widgets", Enabled: false},
		{NodeID: "organization:acme", Enabled: true},
	}
	if err := s.SaveEnabled(ctx, first); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadEnabled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].NodeID != "organization:acme" || got[1].Enabled {
		t.Errorf("records = %+v", got)
	}

	if err := s.SaveEnabled(ctx, []model.EnabledRecord{{NodeID: "organization:globex", Enabled: false}}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadEnabled(ctx)
	if len(got) != 1 || got[0].NodeID != "organization:globex" {
		t.Errorf("second save should replace the set, got %+v", got)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }
	if err := s.SaveEnabled(context.Background(), []model.EnabledRecord{{NodeID: "repository:a:b", Enabled: false}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.LoadEnabled(context.Background())
	if err != nil || len(got) != 1 || got[0].Enabled {
		t.Fatalf("after reopen: %+v, %v", got, err)
	}
	at, ok, err := s.UpdatedAt(context.Background(), "repository:a:b")
	if err != nil || !ok || !at.Equal(stamp) {
		t.Errorf("updated_at = %v %v %v", at, ok, err)
	}
	if _, ok, _ := s.UpdatedAt(context.Background(), "repository:x:y"); ok {
		t.Error("unknown node should have no timestamp")
	}
}

func TestDuplicateIDsLastWins(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	err := s.SaveEnabled(ctx, []model.EnabledRecord{
		{NodeID: "repository:a:b", Enabled: true},
		{NodeID: "repository:a:b", Enabled: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.LoadEnabled(ctx)
	if len(got) != 1 || got[0].Enabled {
		t.Errorf("records = %+v", got)
	}
}

func TestFallbackUsesSQLiteWhenPrimaryDown(t *testing.T) {
	local := openTemp(t)
	ctx := context.Background()
	if err := local.SaveEnabled(ctx, []model.EnabledRecord{{NodeID: "organization:acme", Enabled: false}}); err != nil {
		t.Fatal(err)
	}
	p := &enabled.FallbackPersister{Primary: downPersister{}, Local: local}
	got, err := p.LoadEnabled(ctx)
	if err != nil || len(got) != 1 || got[0].NodeID != "organization:acme" {
		t.Errorf("fallback load = %+v, %v", got, err)
	}
}

type downPersister struct{}

func (downPersister) SaveEnabled(context.Context, []model.EnabledRecord) error {
	return context.DeadlineExceeded
}

func (downPersister) LoadEnabled(context.Context) ([]model.EnabledRecord, error) {
	return nil, context.DeadlineExceeded
}

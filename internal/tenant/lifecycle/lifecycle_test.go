package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

type fakeRegistry struct {
	rec       *registry.Record
	getErr    error
	deleteErr error
	databases []string

	ops      []string
	statuses []registry.Status
}

func (f *fakeRegistry) Get(ctx context.Context, id int64) (*registry.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rec, nil
}

func (f *fakeRegistry) Delete(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.ops = append(f.ops, "registry.delete")
	return nil
}

func (f *fakeRegistry) SetStatus(ctx context.Context, id int64, status registry.Status) (*registry.Record, error) {
	f.statuses = append(f.statuses, status)
	rec := *f.rec
	rec.Status = status
	return &rec, nil
}

func (f *fakeRegistry) ListDatabases(ctx context.Context) ([]string, error) {
	return f.databases, nil
}

type fakeCatalog struct {
	schemas []string
	dropErr error
	ops     *[]string
	dropped []string
}

func (f *fakeCatalog) DropDatabase(ctx context.Context, name string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, name)
	if f.ops != nil {
		*f.ops = append(*f.ops, "catalog.drop")
	}
	return nil
}

func (f *fakeCatalog) ListSchemas(ctx context.Context) ([]string, error) {
	return f.schemas, nil
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(database string) {
	f.invalidated = append(f.invalidated, database)
}

func tenantRec() *registry.Record {
	return &registry.Record{ID: 12, Domain: "laparrilla.mesadine.test", Database: "tenant_12_db", Status: registry.StatusActive}
}

func TestDelete_RowBeforeDatabase(t *testing.T) {
	reg := &fakeRegistry{rec: tenantRec()}
	cat := &fakeCatalog{ops: &reg.ops}
	pools := &fakeInvalidator{}
	s := New(reg, cat, pools)

	if err := s.Delete(context.Background(), 12); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"registry.delete", "catalog.drop"}
	if !reflect.DeepEqual(reg.ops, want) {
		t.Fatalf("expected row first, then drop; got %v", reg.ops)
	}
	if !reflect.DeepEqual(pools.invalidated, []string{"tenant_12_db"}) {
		t.Fatalf("expected pool invalidated, got %v", pools.invalidated)
	}
}

func TestDelete_UnknownTenant(t *testing.T) {
	reg := &fakeRegistry{getErr: registry.ErrNotFound}
	s := New(reg, &fakeCatalog{}, nil)

	if err := s.Delete(context.Background(), 99); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_DropFailureLeavesOrphanDatabase(t *testing.T) {
	reg := &fakeRegistry{rec: tenantRec()}
	cat := &fakeCatalog{dropErr: errors.New("lock held")}
	pools := &fakeInvalidator{}
	s := New(reg, cat, pools)

	err := s.Delete(context.Background(), 12)
	if err == nil {
		t.Fatal("expected error")
	}
	// the row is already gone: the orphan database is Reconcile's job now
	if !reflect.DeepEqual(reg.ops, []string{"registry.delete"}) {
		t.Fatalf("expected registry delete only, got %v", reg.ops)
	}
	if len(pools.invalidated) != 0 {
		t.Fatalf("pool must not be invalidated on failed drop, got %v", pools.invalidated)
	}
}

func TestActivateDisable(t *testing.T) {
	reg := &fakeRegistry{rec: tenantRec()}
	s := New(reg, &fakeCatalog{}, nil)

	rec, err := s.Activate(context.Background(), 12)
	if err != nil || rec.Status != registry.StatusActive {
		t.Fatalf("activate: rec=%v err=%v", rec, err)
	}
	rec, err = s.Disable(context.Background(), 12)
	if err != nil || rec.Status != registry.StatusDisabled {
		t.Fatalf("disable: rec=%v err=%v", rec, err)
	}
	if !reflect.DeepEqual(reg.statuses, []registry.Status{registry.StatusActive, registry.StatusDisabled}) {
		t.Fatalf("unexpected status calls: %v", reg.statuses)
	}
}

func TestDiff_BothDirections(t *testing.T) {
	schemas := []string{
		"mesadine",      // control plane, ignored
		"newtenantdb",   // template, ignored
		"tenant_1_db",   // registered
		"tenant_7_db",   // orphan database
		"information_schema",
	}
	registered := []string{"tenant_1_db", "tenant_3_db"}

	report := diff(schemas, registered)
	if !reflect.DeepEqual(report.OrphanDatabases, []string{"tenant_7_db"}) {
		t.Fatalf("orphan databases: %v", report.OrphanDatabases)
	}
	if !reflect.DeepEqual(report.OrphanRecords, []string{"tenant_3_db"}) {
		t.Fatalf("orphan records: %v", report.OrphanRecords)
	}
}

func TestDiff_Clean(t *testing.T) {
	report := diff([]string{"mesadine", "tenant_1_db"}, []string{"tenant_1_db"})
	if len(report.OrphanDatabases) != 0 || len(report.OrphanRecords) != 0 {
		t.Fatalf("expected clean diff, got %+v", report)
	}
}

func TestReconcile_DropOrphans(t *testing.T) {
	reg := &fakeRegistry{rec: tenantRec(), databases: []string{"tenant_1_db"}}
	cat := &fakeCatalog{schemas: []string{"mesadine", "tenant_1_db", "tenant_9_db"}}
	pools := &fakeInvalidator{}
	s := New(reg, cat, pools)

	report, err := s.Reconcile(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(report.Dropped, []string{"tenant_9_db"}) {
		t.Fatalf("expected tenant_9_db dropped, got %v", report.Dropped)
	}
	if !reflect.DeepEqual(cat.dropped, []string{"tenant_9_db"}) {
		t.Fatalf("expected physical drop, got %v", cat.dropped)
	}
	if !reflect.DeepEqual(pools.invalidated, []string{"tenant_9_db"}) {
		t.Fatalf("expected pool invalidated, got %v", pools.invalidated)
	}
}

func TestReconcile_ReportOnlyByDefault(t *testing.T) {
	reg := &fakeRegistry{rec: tenantRec(), databases: []string{}}
	cat := &fakeCatalog{schemas: []string{"tenant_9_db"}}
	s := New(reg, cat, nil)

	report, err := s.Reconcile(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Dropped) != 0 || len(cat.dropped) != 0 {
		t.Fatalf("nothing should be dropped without the flag: %+v", report)
	}
	if !reflect.DeepEqual(report.OrphanDatabases, []string{"tenant_9_db"}) {
		t.Fatalf("orphan databases: %v", report.OrphanDatabases)
	}
}

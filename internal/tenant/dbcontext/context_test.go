package dbcontext

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

type fakePools struct {
	gets []string
	err  error
}

func (f *fakePools) Get(ctx context.Context, database string) (*sql.DB, error) {
	f.gets = append(f.gets, database)
	return nil, f.err
}

func TestWithDatabase_RestoresPrevious(t *testing.T) {
	c := New(&fakePools{}, "mesadine")
	if c.Current() != "mesadine" {
		t.Fatalf("expected control database, got %q", c.Current())
	}

	err := c.WithDatabase(context.Background(), "tenant_7_db", func(ctx context.Context, db *sql.DB) error {
		if c.Current() != "tenant_7_db" {
			t.Fatalf("expected tenant database inside fn, got %q", c.Current())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Current() != "mesadine" {
		t.Fatalf("expected restore to control database, got %q", c.Current())
	}
}

func TestWithDatabase_NestedRestoresImmediatePrevious(t *testing.T) {
	c := New(&fakePools{}, "mesadine")

	_ = c.WithDatabase(context.Background(), "tenant_1_db", func(ctx context.Context, db *sql.DB) error {
		_ = c.WithDatabase(ctx, "tenant_2_db", func(ctx context.Context, db *sql.DB) error {
			if c.Current() != "tenant_2_db" {
				t.Fatalf("inner: got %q", c.Current())
			}
			return nil
		})
		// back to the outer target, not to the control database
		if c.Current() != "tenant_1_db" {
			t.Fatalf("after inner: got %q", c.Current())
		}
		return nil
	})
	if c.Current() != "mesadine" {
		t.Fatalf("after outer: got %q", c.Current())
	}
}

func TestWithDatabase_RestoresOnError(t *testing.T) {
	boom := errors.New("boom")
	c := New(&fakePools{}, "mesadine")

	err := c.WithDatabase(context.Background(), "tenant_9_db", func(ctx context.Context, db *sql.DB) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if c.Current() != "mesadine" {
		t.Fatalf("expected restore after error, got %q", c.Current())
	}
}

func TestWithDatabase_RestoresOnPanic(t *testing.T) {
	c := New(&fakePools{}, "mesadine")

	func() {
		defer func() { _ = recover() }()
		_ = c.WithDatabase(context.Background(), "tenant_3_db", func(ctx context.Context, db *sql.DB) error {
			panic("handler blew up")
		})
	}()
	if c.Current() != "mesadine" {
		t.Fatalf("expected restore after panic, got %q", c.Current())
	}
}

func TestWithDatabase_PoolErrorStillRestores(t *testing.T) {
	pools := &fakePools{err: errors.New("dsn rejected")}
	c := New(pools, "mesadine")

	called := false
	err := c.WithDatabase(context.Background(), "tenant_4_db", func(ctx context.Context, db *sql.DB) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected pool error without fn call, err=%v called=%v", err, called)
	}
	if c.Current() != "mesadine" {
		t.Fatalf("expected restore, got %q", c.Current())
	}
}

func TestFromContext_Roundtrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil without injection")
	}
	c := NewFor(&fakePools{}, "mesadine", "tenant_5_db")
	ctx := ToContext(context.Background(), c)
	got := FromContext(ctx)
	if got != c {
		t.Fatal("expected same context back")
	}
	if got.Current() != "tenant_5_db" || got.ControlDatabase() != "mesadine" {
		t.Fatalf("unexpected state: current=%q control=%q", got.Current(), got.ControlDatabase())
	}
}

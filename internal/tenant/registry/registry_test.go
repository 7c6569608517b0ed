package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	mysql2 "github.com/go-sql-driver/mysql"
)

func baseFields() Fields {
	return Fields{
		Name:     "La Parrilla",
		Domain:   "laparrilla.mesadine.test",
		Database: "tenant_12_db",
		Email:    "owner@laparrilla.test",
		Phone:    "+54111234567",
		Start:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:     "restaurant",
		Country:  "AR",
	}
}

func TestFieldsValidate_OK(t *testing.T) {
	if err := baseFields().Validate(true); err != nil {
		t.Fatalf("expected valid fields, got %v", err)
	}
}

func TestFieldsValidate_Invalid(t *testing.T) {
	long := strings.Repeat("x", 300)

	cases := []struct {
		name   string
		mutate func(*Fields)
	}{
		{"empty name", func(f *Fields) { f.Name = "  " }},
		{"long name", func(f *Fields) { f.Name = long }},
		{"empty domain", func(f *Fields) { f.Domain = "" }},
		{"email without at", func(f *Fields) { f.Email = "not-an-email" }},
		{"empty phone", func(f *Fields) { f.Phone = "" }},
		{"long phone", func(f *Fields) { f.Phone = strings.Repeat("9", 21) }},
		{"zero start", func(f *Fields) { f.Start = time.Time{} }},
		{"end before start", func(f *Fields) { f.End = f.Start.AddDate(0, 0, -1) }},
		{"empty type", func(f *Fields) { f.Type = "" }},
		{"empty country", func(f *Fields) { f.Country = "" }},
		{"long description", func(f *Fields) { f.Description = strings.Repeat("d", 1001) }},
	}
	for _, tc := range cases {
		f := baseFields()
		tc.mutate(&f)
		err := f.Validate(true)
		if !errors.Is(err, ErrInvalidFields) {
			t.Fatalf("%s: expected ErrInvalidFields, got %v", tc.name, err)
		}
	}
}

func TestFieldsValidate_DatabaseOnlyOnCreate(t *testing.T) {
	f := baseFields()
	f.Database = "tenant-12-db" // dashes are not allowed

	if err := f.Validate(true); !errors.Is(err, ErrInvalidFields) {
		t.Fatalf("create: expected ErrInvalidFields, got %v", err)
	}
	// updates never touch the database identifier
	if err := f.Validate(false); err != nil {
		t.Fatalf("update: expected valid, got %v", err)
	}
}

func TestValidDatabaseName(t *testing.T) {
	valids := []string{"tenant_1_db", "newtenantdb", "a", "A_9", strings.Repeat("a", 64)}
	for _, v := range valids {
		if !validDatabaseName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
	invalids := []string{"", "with space", "semi;colon", "back`tick", "dash-ed", "ñandu", strings.Repeat("a", 65)}
	for _, v := range invalids {
		if validDatabaseName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizeOrder(t *testing.T) {
	cases := map[string]string{
		"asc":     "ASC",
		"ASC":     "ASC",
		" Asc ":   "ASC",
		"desc":    "DESC",
		"":        "DESC",
		"sideways": "DESC",
	}
	for in, want := range cases {
		if got := NormalizeOrder(in); got != want {
			t.Fatalf("NormalizeOrder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapDuplicate(t *testing.T) {
	domainErr := &mysql2.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'tenants.tenants_domain_unique'"}
	dbErr := &mysql2.MySQLError{Number: 1062, Message: "Duplicate entry 'y' for key 'tenants.tenants_database_unique'"}
	otherDup := &mysql2.MySQLError{Number: 1062, Message: "Duplicate entry 'z' for key 'tenants.PRIMARY'"}
	plain := errors.New("connection reset")

	if got := mapDuplicate(domainErr); !errors.Is(got, ErrDuplicateDomain) {
		t.Fatalf("domain key: got %v", got)
	}
	if got := mapDuplicate(dbErr); !errors.Is(got, ErrDuplicateDatabase) {
		t.Fatalf("database key: got %v", got)
	}
	if got := mapDuplicate(otherDup); got != error(otherDup) {
		t.Fatalf("unknown key must pass through, got %v", got)
	}
	if got := mapDuplicate(plain); got != plain {
		t.Fatalf("non-duplicate must pass through, got %v", got)
	}
}

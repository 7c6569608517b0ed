package cloner

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRewriteDDL_StripsTemplateQualifier(t *testing.T) {
	ddl := "CREATE TABLE `newtenantdb`.`menus` (\n" +
		"  `menu_id` int NOT NULL AUTO_INCREMENT,\n" +
		"  CONSTRAINT `fk_cat` FOREIGN KEY (`category_id`) REFERENCES `newtenantdb`.`categories` (`category_id`)\n" +
		") ENGINE=InnoDB"

	got := rewriteDDL(ddl, "newtenantdb")
	want := "CREATE TABLE `menus` (\n" +
		"  `menu_id` int NOT NULL AUTO_INCREMENT,\n" +
		"  CONSTRAINT `fk_cat` FOREIGN KEY (`category_id`) REFERENCES `categories` (`category_id`)\n" +
		") ENGINE=InnoDB"
	if got != want {
		t.Fatalf("rewriteDDL mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestRewriteDDL_LeavesOtherQualifiersAlone(t *testing.T) {
	ddl := "CREATE TABLE `orders` (`id` int) /* refs `tenant_1_db`.`x` */"
	if got := rewriteDDL(ddl, "newtenantdb"); got != ddl {
		t.Fatalf("expected untouched DDL, got %s", got)
	}
}

func TestReportWarnings(t *testing.T) {
	r := &Report{
		Template: "newtenantdb",
		Target:   "tenant_1_db",
		Tables: []TableReport{
			{Name: "menus", Rows: 10},
			{Name: "orders", Err: "create: table exists"},
			{Name: "tables", Rows: 3},
			{Name: "coupons", Err: "copy: lock wait timeout"},
		},
	}
	want := []string{
		"table orders: create: table exists",
		"table coupons: copy: lock wait timeout",
	}
	if got := r.Warnings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Warnings() = %v, want %v", got, want)
	}
}

func TestReportWarnings_EmptyOnCleanClone(t *testing.T) {
	r := &Report{Tables: []TableReport{{Name: "menus", Rows: 1}}}
	if got := r.Warnings(); got != nil {
		t.Fatalf("expected nil warnings, got %v", got)
	}
}

// expectCloneTable arma la secuencia de comandos que Clone emite por
// tabla: SHOW CREATE, DDL reescrito, COUNT y, si hay filas, el copy.
func expectCloneTable(mock sqlmock.Sqlmock, template, target, table string, count int64) {
	mock.ExpectQuery("SHOW CREATE TABLE `"+template+"`.`"+table+"`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow(table, "CREATE TABLE `"+template+"`.`"+table+"` (`id` int)"))
	mock.ExpectExec("CREATE TABLE `" + table + "`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `"+template+"`.`"+table+"`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
	if count > 0 {
		mock.ExpectExec("INSERT INTO `"+target+"`.`"+table+"` SELECT \\* FROM `"+template+"`.`"+table+"`").
			WillReturnResult(sqlmock.NewResult(0, count))
	}
}

func expectSessionRestore(mock sqlmock.Sqlmock, control string) {
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE `" + control + "`").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestClone_CopiesAllTablesAndRestoresSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SHOW TABLES FROM `newtenantdb`").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_newtenantdb"}).
			AddRow("menus").AddRow("sessions").AddRow("orders"))
	mock.ExpectExec("USE `tenant_9_db`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectCloneTable(mock, "newtenantdb", "tenant_9_db", "menus", 5)
	expectCloneTable(mock, "newtenantdb", "tenant_9_db", "sessions", 0)
	expectCloneTable(mock, "newtenantdb", "tenant_9_db", "orders", 2)
	expectSessionRestore(mock, "mesadine")

	report, err := New(db, "mesadine").Clone(context.Background(), "newtenantdb", "tenant_9_db")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if report.Created != 3 || report.Copied != 2 || report.Failed != 0 {
		t.Fatalf("report = created %d copied %d failed %d", report.Created, report.Copied, report.Failed)
	}
	wantRows := map[string]int64{"menus": 5, "sessions": 0, "orders": 2}
	for _, tr := range report.Tables {
		if tr.Rows != wantRows[tr.Name] {
			t.Fatalf("table %s rows = %d, want %d", tr.Name, tr.Rows, wantRows[tr.Name])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClone_SkipsFailedTableAndContinues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SHOW TABLES FROM `newtenantdb`").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_newtenantdb"}).
			AddRow("menus").AddRow("sessions").AddRow("orders"))
	mock.ExpectExec("USE `tenant_3_db`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectCloneTable(mock, "newtenantdb", "tenant_3_db", "menus", 5)
	mock.ExpectQuery("SHOW CREATE TABLE `newtenantdb`.`sessions`").
		WillReturnError(errors.New("table is marked as crashed"))
	expectCloneTable(mock, "newtenantdb", "tenant_3_db", "orders", 2)
	expectSessionRestore(mock, "mesadine")

	report, err := New(db, "mesadine").Clone(context.Background(), "newtenantdb", "tenant_3_db")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if report.Created != 2 || report.Copied != 2 || report.Failed != 1 {
		t.Fatalf("report = created %d copied %d failed %d", report.Created, report.Copied, report.Failed)
	}
	warnings := report.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "sessions") {
		t.Fatalf("warnings = %v", warnings)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClone_EnumerateFailureStillRestoresSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SHOW TABLES FROM `newtenantdb`").
		WillReturnError(errors.New("access denied"))
	expectSessionRestore(mock, "mesadine")

	if _, err := New(db, "mesadine").Clone(context.Background(), "newtenantdb", "tenant_9_db"); err == nil {
		t.Fatal("expected enumerate error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

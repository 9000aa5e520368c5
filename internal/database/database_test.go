package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestDSN(t *testing.T) {
	dsn := Options{User: "hotel", Pass: "s3cret", Host: "db", Port: "3306", Name: "hotel"}.DSN()
	for _, want := range []string{"hotel:s3cret@tcp(db:3306)/hotel", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestWithinTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE inventory").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithinTx(context.Background(), db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE inventory SET available_rooms = 1")
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithinTx(context.Background(), db, func(ctx context.Context, tx *Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSavepointRollsBackOnlyInnerWork(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_2")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT sp_2")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = WithinTx(context.Background(), db, func(ctx context.Context, tx *Tx) error {
		if err := tx.Savepoint(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Errorf("savepoint err = %v", err)
		}
		return tx.Savepoint(ctx, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsLockError(&mysql.MySQLError{Number: 1205}) || !IsLockError(&mysql.MySQLError{Number: 1213}) {
		t.Error("lock wait timeout and deadlock must be lock errors")
	}
	if IsLockError(errors.New("1205")) {
		t.Error("plain errors are not lock errors")
	}
	if !IsDuplicate(&mysql.MySQLError{Number: 1062}) {
		t.Error("1062 must be a duplicate")
	}
}

func TestStatementsSplitSchema(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 7 {
		t.Fatalf("statements = %d, want 7", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("unexpected statement: %.40s", s)
		}
	}
}

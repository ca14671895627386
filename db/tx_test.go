package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestInTx_CommitsOnSuccess(t *testing.T) {
	pool := &fakePool{}
	if err := InTx(context.Background(), pool, func(tx pgx.Tx) error { return nil }); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !pool.tx.committed {
		t.Fatal("expected commit")
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	boom := errors.New("boom")
	err := InTx(context.Background(), pool, func(tx pgx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if pool.tx.committed {
		t.Fatal("expected commit to be skipped")
	}
	if !pool.tx.rolled {
		t.Fatal("expected rollback")
	}
}

func TestInTx_BeginFailure(t *testing.T) {
	pool := &fakePool{beginErr: errors.New("no conn")}
	called := false
	err := InTx(context.Background(), pool, func(tx pgx.Tx) error { called = true; return nil })
	if err == nil || called {
		t.Fatalf("expected begin failure without calling fn, err=%v called=%v", err, called)
	}
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505", ConstraintName: "dispute_requests_one_open_per_appointment"})
	if !IsUniqueViolation(unique, "") {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(unique, "dispute_requests_one_open_per_appointment") {
		t.Fatal("expected named unique violation")
	}
	if IsUniqueViolation(unique, "other") {
		t.Fatal("expected constraint mismatch")
	}
	if IsCheckViolation(unique) {
		t.Fatal("unique is not a check violation")
	}
	if !IsCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Fatal("expected check violation")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Fatal("plain error is not a pg error")
	}
}

type fakePool struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	committed bool
	rolled    bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolled = true
	}
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

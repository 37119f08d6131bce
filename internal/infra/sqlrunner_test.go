package infra

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const testQuery = `--sql 7d1c6c0e-9a43-4a53-9f0a-8d0c1b2e3f40
select 1;
`

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker(testQuery)
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "7d1c6c0e-9a43-4a53-9f0a-8d0c1b2e3f40" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
	if _, _, err := extractMarker("select 1;"); err == nil {
		t.Fatalf("expected error for query without marker")
	}
}

type stubTx struct {
	pgx.Tx
	execs      []string
	committed  bool
	rolledBack bool
}

func (s *stubTx) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, query)
	return pgconn.CommandTag{}, nil
}

func (s *stubTx) Commit(ctx context.Context) error {
	s.committed = true
	return nil
}

func (s *stubTx) Rollback(ctx context.Context) error {
	s.rolledBack = true
	return nil
}

type stubBeginner struct {
	tx *stubTx
}

func (s *stubBeginner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("exec outside tx")
}

func (s *stubBeginner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return errorRow{err: errors.New("not implemented")}
}

func (s *stubBeginner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.tx, nil
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	tx := &stubTx{}
	runner := NewSQLRunner(&stubBeginner{tx: tx}, zerolog.New(io.Discard))
	err := runner.InTx(context.Background(), func(r *SQLRunner) error {
		_, err := r.Exec(context.Background(), testQuery)
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("expected commit only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	if len(tx.execs) != 1 || tx.execs[0] != "select 1;" {
		t.Fatalf("marker should be stripped before exec, got %#v", tx.execs)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	tx := &stubTx{}
	runner := NewSQLRunner(&stubBeginner{tx: tx}, zerolog.New(io.Discard))
	boom := errors.New("boom")
	err := runner.InTx(context.Background(), func(r *SQLRunner) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestInTxRequiresBeginner(t *testing.T) {
	runner := NewSQLRunner(errorExecutor{}, zerolog.New(io.Discard))
	if err := runner.InTx(context.Background(), func(*SQLRunner) error { return nil }); err == nil {
		t.Fatalf("expected error for executor without transactions")
	}
}

type errorExecutor struct{}

func (errorExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("no")
}

func (errorExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return errorRow{err: errors.New("no")}
}

func (errorExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("no")
}

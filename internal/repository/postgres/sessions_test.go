package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

func sessionRows() *pgxmock.Rows {
	return pgxmock.NewRows(sessionColumns)
}

func TestSessionRepository_FindByTokenHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth_sessions WHERE refresh_token_hash = \$1`).
		WithArgs("missing-hash").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindByTokenHash(context.Background(), "missing-hash"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_FindByTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	created := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM auth_sessions WHERE refresh_token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(sessionRows().AddRow(
			"session-1", "user-1", "hash-1", nil, nil,
			created, created.Add(7*24*time.Hour), nil, nil, nil,
		))

	session, err := repo.FindByTokenHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("FindByTokenHash: %v", err)
	}
	if session.ID != "session-1" || session.UserID != "user-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.RevokedAt != nil {
		t.Fatal("expected active session")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Revoke_OnlyUnrevokedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	replacedBy := "session-2"
	// The revoked_at IS NULL guard keeps the first revocation intact.
	mock.ExpectExec(`UPDATE auth_sessions SET .+ WHERE id = \$4 AND revoked_at IS NULL`).
		WithArgs(pgxmock.AnyArg(), domain.RevokeReasonRotated, &replacedBy, "session-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Revoke(context.Background(), port.RevokeSessionInput{
		SessionID:           "session-1",
		Reason:              domain.RevokeReasonRotated,
		ReplacedBySessionID: &replacedBy,
	})
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_RevokeAllForUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectExec(`UPDATE auth_sessions SET .+ WHERE revoked_at IS NULL AND user_id = \$3`).
		WithArgs(pgxmock.AnyArg(), domain.RevokeReasonTokenReplay, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	if err := repo.RevokeAllForUser(context.Background(), "user-1", domain.RevokeReasonTokenReplay); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_IsActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM auth_sessions WHERE`).
		WithArgs("session-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	active, err := repo.IsActive(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Fatal("expected active session")
	}

	mock.ExpectQuery(`SELECT 1 FROM auth_sessions WHERE`).
		WithArgs("session-2").
		WillReturnError(pgx.ErrNoRows)

	active, err = repo.IsActive(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Fatal("expected inactive session")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_WithinTx_LocksAndCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	created := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM auth_sessions WHERE refresh_token_hash = \$1 FOR UPDATE`).
		WithArgs("hash-1").
		WillReturnRows(sessionRows().AddRow(
			"session-1", "user-1", "hash-1", nil, nil,
			created, created.Add(7*24*time.Hour), nil, nil, nil,
		))
	mock.ExpectCommit()

	err = repo.WithinTx(context.Background(), func(tx port.SessionOps) error {
		session, err := tx.FindByTokenHash(context.Background(), "hash-1")
		if err != nil {
			return err
		}
		if session.ID != "session-1" {
			t.Fatalf("unexpected session: %+v", session)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_WithinTx_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = repo.WithinTx(context.Background(), func(tx port.SessionOps) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected closure error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

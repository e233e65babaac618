package database_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/finblog/internal/database"
	"github.com/jonesrussell/finblog/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

func TestCandidateRepository_InsertCandidate(t *testing.T) {
	t.Helper()

	db, mock := newMockDB(t)
	repo := database.NewCandidateRepository(db)

	testCases := []struct {
		name         string
		setupMock    func()
		wantInserted bool
		wantErr      bool
	}{
		{
			name: "first sight inserts",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO candidate_items").
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
			},
			wantInserted: true,
		},
		{
			name: "same hash is a duplicate, not an error",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO candidate_items").WillReturnError(sql.ErrNoRows)
			},
			wantInserted: false,
		},
		{
			name: "database failure",
			setupMock: func() {
				mock.ExpectQuery("INSERT INTO candidate_items").WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			item := &domain.CandidateItem{
				Title:       "Bank of Canada holds rate",
				Link:        "https://news.example/boc",
				Category:    "rates",
				ContentHash: domain.ContentHash("Bank of Canada holds rate", "https://news.example/boc"),
			}
			inserted, callErr := repo.InsertCandidate(t.Context(), item)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("InsertCandidate() error = %v, wantErr %v", callErr, tc.wantErr)
			}
			if inserted != tc.wantInserted {
				t.Errorf("InsertCandidate() inserted = %v, want %v", inserted, tc.wantInserted)
			}
			if item.ID == "" {
				t.Error("InsertCandidate() did not assign an id")
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestCandidateRepository_GetCandidate_NotFound(t *testing.T) {
	t.Helper()

	db, mock := newMockDB(t)
	repo := database.NewCandidateRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM candidate_items WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, getErr := repo.GetCandidate(t.Context(), "missing")
	if !errors.Is(getErr, domain.ErrNotFound) {
		t.Errorf("GetCandidate() error = %v, want ErrNotFound", getErr)
	}
}

func TestCandidateRepository_SetExcluded(t *testing.T) {
	t.Helper()

	db, mock := newMockDB(t)
	repo := database.NewCandidateRepository(db)

	mock.ExpectExec("UPDATE candidate_items SET excluded").
		WithArgs("c1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE candidate_items SET excluded").
		WithArgs("gone", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetExcluded(t.Context(), "c1", true); err != nil {
		t.Errorf("SetExcluded() error = %v", err)
	}
	if err := repo.SetExcluded(t.Context(), "gone", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetExcluded() missing error = %v, want ErrNotFound", err)
	}
}

func TestCandidateRepository_DeleteCandidates(t *testing.T) {
	t.Helper()

	db, mock := newMockDB(t)
	repo := database.NewCandidateRepository(db)

	mock.ExpectExec("DELETE FROM candidate_items").
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := repo.DeleteCandidates(t.Context(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("DeleteCandidates() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteCandidates() = %d, want 2", deleted)
	}

	if none, noneErr := repo.DeleteCandidates(t.Context(), nil); none != 0 || noneErr != nil {
		t.Errorf("DeleteCandidates(nil) = %d, %v", none, noneErr)
	}
}

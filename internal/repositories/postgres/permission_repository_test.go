package postgres

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/asakaida/kanmon/internal/entities"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var permissionRowColumns = []string{"id", "role_id", "action", "subject", "properties", "conditions", "created_at", "updated_at"}

func TestPermissionRepository_FindByRoleIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresPermissionRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(permissionRowColumns).
		AddRow(1, 10, "plugin::content-manager.explorer.read", "api::article.article",
			[]byte(`{"fields":["title","body"]}`), []byte(`["admin::is-creator"]`), now, now).
		AddRow(2, 11, "admin::marketplace.read", nil, []byte(`{}`), []byte(`[]`), now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM permissions WHERE role_id = ANY($1) ORDER BY id`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.FindByRoleIDs(context.Background(), []int64{10, 11})
	if err != nil {
		t.Fatalf("FindByRoleIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByRoleIDs() returned %d permissions, want 2", len(got))
	}

	fields, ok := got[0].Properties.Fields()
	if !ok || !reflect.DeepEqual(fields, []string{"title", "body"}) {
		t.Errorf("fields = %v, %v", fields, ok)
	}
	if !reflect.DeepEqual(got[0].Conditions, []string{"admin::is-creator"}) {
		t.Errorf("conditions = %v", got[0].Conditions)
	}
	if got[1].Subject != "" || got[1].Conditions == nil || got[1].Properties == nil {
		t.Errorf("second permission = %+v, want null subject and default-filled fields", got[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPermissionRepository_FindByRoleIDs_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresPermissionRepository(db)

	got, err := repo.FindByRoleIDs(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("FindByRoleIDs(nil) = %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query expected: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM permissions WHERE role_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO permissions`)).
		WithArgs(int64(10), "plugin::content-manager.explorer.read", "api::article.article",
			[]byte(`{"fields":["title"]}`), []byte(`[]`), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO permissions`)).
		WithArgs(int64(10), "admin::marketplace.read", nil, []byte(`{}`), []byte(`["admin::is-creator"]`), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO permission_changes (role_id) VALUES ($1)`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, err := repo.ReplaceForRole(context.Background(), 10, []entities.Permission{
		entities.NewPermission("plugin::content-manager.explorer.read", "api::article.article",
			entities.Properties{"fields": []string{"title"}}, nil),
		entities.NewPermission("admin::marketplace.read", "", nil, []string{"admin::is-creator"}),
	})
	if err != nil {
		t.Fatalf("ReplaceForRole() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 100 || got[1].ID != 101 || got[0].RoleID != 10 {
		t.Errorf("ReplaceForRole() = %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRole_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresPermissionRepository(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM permissions WHERE role_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO permissions`)).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.ReplaceForRole(context.Background(), 10, []entities.Permission{
		entities.NewPermission("admin::marketplace.read", "", nil, nil),
	})
	if !errors.Is(err, boom) {
		t.Errorf("ReplaceForRole() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPermissionRepository_DeleteByIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM permissions WHERE id = ANY($1)`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO permission_changes`)).
		WithArgs(nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.DeleteByIDs(context.Background(), []int64{1, 2}); err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	if err := repo.DeleteByIDs(context.Background(), nil); err != nil {
		t.Fatalf("DeleteByIDs(nil) error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPermissionRepository_LatestChange(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    string
		wantErr bool
	}{
		{
			name: "latest id",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM permission_changes`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("42"))
			},
			want: "42",
		},
		{
			name: "no change yet",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM permission_changes`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			want: "",
		},
		{
			name: "query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM permission_changes`).WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			got, err := NewPostgresPermissionRepository(db).LatestChange(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("LatestChange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LatestChange() = %q, want %q", got, tt.want)
			}
		})
	}
}

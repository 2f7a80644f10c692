package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/config"
	"github.com/coopdesk/backoffice/internal/domain"
	sqlstorage "github.com/coopdesk/backoffice/internal/storage/sql"
	"github.com/coopdesk/backoffice/internal/storage/sql/repository"
)

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	testBranches = []domain.Branch{
		{Code: "MNL", Name: "Manila", CompanyCode: "C1"},
		{Code: "CEB", Name: "Cebu", CompanyCode: "C1"},
	}
	testMembers = []domain.Member{
		{ID: "m1", MemberNo: "M-001", FullName: "Juan Dela Cruz", BranchCode: "MNL", CompanyCode: "C1", Balance: decimal.RequireFromString("1500.50"), JoinedOn: date("2023-01-15"), Active: true},
		{ID: "m2", MemberNo: "M-002", FullName: "Maria Santos", BranchCode: "CEB", CompanyCode: "C1", Balance: decimal.RequireFromString("250"), JoinedOn: date("2023-06-01"), Active: true},
		{ID: "m3", MemberNo: "M-003", FullName: "Juanito Reyes", BranchCode: "CEB", CompanyCode: "C1", Balance: decimal.RequireFromString("99.99"), JoinedOn: date("2024-02-29"), Active: false},
		{ID: "m4", MemberNo: "M-004", FullName: "Ana 100% Garcia", BranchCode: "MNL", CompanyCode: "C2", Balance: decimal.RequireFromString("5000"), JoinedOn: date("2024-08-10"), Active: true},
	}
)

func newSQLiteStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := sqlstorage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveMembers(context.Background(), testBranches, testMembers))
	return store
}

func memberIDs(page *domain.MemberPage) []string {
	ids := make([]string, len(page.Members))
	for i, m := range page.Members {
		ids[i] = m.ID
	}
	return ids
}

func TestSQLiteStore_FindMembers(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   domain.MemberQuery
		wantIDs []string
		total   int
	}{
		{
			name:    "no filters sorts by member number",
			query:   domain.MemberQuery{Limit: 10},
			wantIDs: []string{"m1", "m2", "m3", "m4"},
			total:   4,
		},
		{
			name: "contains is case-insensitive",
			query: domain.MemberQuery{Filters: domain.FilterMap{
				"fullName": {Mode: domain.ModeContains, Value: domain.ScalarPtr("juan"), DataType: domain.DataTypeText},
			}},
			wantIDs: []string{"m1", "m3"},
			total:   2,
		},
		{
			name: "percent sign matches literally",
			query: domain.MemberQuery{Filters: domain.FilterMap{
				"fullName": {Mode: domain.ModeContains, Value: domain.ScalarPtr("100%"), DataType: domain.DataTypeText},
			}},
			wantIDs: []string{"m4"},
			total:   1,
		},
		{
			name: "partial number range is open-ended",
			query: domain.MemberQuery{Filters: domain.FilterMap{
				"balance": {Mode: domain.ModeRange, From: domain.ScalarPtr("250"), DataType: domain.DataTypeNumber},
			}},
			wantIDs: []string{"m1", "m2", "m4"},
			total:   3,
		},
		{
			name: "date range",
			query: domain.MemberQuery{Filters: domain.FilterMap{
				"joinedOn": {Mode: domain.ModeRange, From: domain.ScalarPtr("2023-06-01"), To: domain.ScalarPtr("2024-02-29"), DataType: domain.DataTypeDate},
			}},
			wantIDs: []string{"m2", "m3"},
			total:   2,
		},
		{
			name: "boolean equals",
			query: domain.MemberQuery{Filters: domain.FilterMap{
				"active": {Mode: domain.ModeEquals, Value: domain.ScalarPtr("false"), DataType: domain.DataTypeBoolean},
			}},
			wantIDs: []string{"m3"},
			total:   1,
		},
		{
			name: "sort then page",
			query: domain.MemberQuery{
				Sort:   domain.SortState{{Field: "balance", Direction: domain.SortDesc}},
				Limit:  2,
				Offset: 2,
			},
			wantIDs: []string{"m2", "m3"},
			total:   4,
		},
		{
			name:    "restricted to ids",
			query:   domain.MemberQuery{IDs: []string{"m4", "m2"}},
			wantIDs: []string{"m2", "m4"},
			total:   2,
		},
		{
			name:    "page past the end",
			query:   domain.MemberQuery{Limit: 10, Offset: 40},
			wantIDs: []string{},
			total:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.FindMembers(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.TotalCount)
			assert.Equal(t, tt.wantIDs, memberIDs(page))
		})
	}
}

func TestSQLiteStore_ScansValues(t *testing.T) {
	store := newSQLiteStore(t)

	page, err := store.FindMembers(context.Background(), domain.MemberQuery{IDs: []string{"m1"}})
	require.NoError(t, err)
	require.Len(t, page.Members, 1)

	m := page.Members[0]
	assert.Equal(t, "Juan Dela Cruz", m.FullName)
	assert.True(t, m.Balance.Equal(decimal.RequireFromString("1500.5")), "balance %s", m.Balance)
	assert.Equal(t, "2023-01-15", m.JoinedOn.Format(domain.DateLayout))
	assert.True(t, m.Active)
	assert.Nil(t, m.Branch, "branch is only loaded on request")
}

func TestSQLiteStore_PreloadBranch(t *testing.T) {
	store := newSQLiteStore(t)

	page, err := store.FindMembers(context.Background(), domain.MemberQuery{
		Preloads: []string{"branch"},
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, page.Members, 2)
	require.NotNil(t, page.Members[0].Branch)
	assert.Equal(t, "Manila", page.Members[0].Branch.Name)
	require.NotNil(t, page.Members[1].Branch)
	assert.Equal(t, "Cebu", page.Members[1].Branch.Name)
}

func TestSQLiteStore_SaveMembersUpserts(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	updated := testMembers[1]
	updated.FullName = "Maria Santos-Lim"
	require.NoError(t, store.SaveMembers(ctx, nil, []domain.Member{updated}))

	page, err := store.FindMembers(ctx, domain.MemberQuery{IDs: []string{"m2"}})
	require.NoError(t, err)
	require.Len(t, page.Members, 1)
	assert.Equal(t, "Maria Santos-Lim", page.Members[0].FullName)
	assert.Equal(t, 1, page.TotalCount)
}

func TestSQLiteStore_SaveMembersRollsBack(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.SaveMembers(ctx, nil, []domain.Member{
		{ID: "m5", MemberNo: "M-005", FullName: "New", BranchCode: "MNL", CompanyCode: "C1", JoinedOn: date("2024-01-01")},
		{MemberNo: "M-006", FullName: "Missing ID", BranchCode: "MNL", CompanyCode: "C1", JoinedOn: date("2024-01-01")},
	})
	require.ErrorIs(t, err, domain.ErrInvalidID)

	page, err := store.FindMembers(ctx, domain.MemberQuery{IDs: []string{"m5"}})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestStore_FindMembers_PostgresSQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	store := repository.NewStore(db, repository.Postgres)

	mock.ExpectQuery(`SELECT COUNT(*) FROM members WHERE branch_code = $1`).
		WithArgs("MNL").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, member_no, full_name, branch_code, company_code, balance, joined_on, active FROM members WHERE branch_code = $1 ORDER BY member_no ASC, id ASC LIMIT $2 OFFSET $3`).
		WithArgs("MNL", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_no", "full_name", "branch_code", "company_code", "balance", "joined_on", "active"}).
			AddRow("m1", "M-001", "Juan Dela Cruz", "MNL", "C1", "1500.50", date("2023-01-15"), true))
	mock.ExpectQuery(`SELECT code, name, company_code FROM branches WHERE code IN ($1)`).
		WithArgs("MNL").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "company_code"}).AddRow("MNL", "Manila", "C1"))

	page, err := store.FindMembers(context.Background(), domain.MemberQuery{
		Filters: domain.FilterMap{
			"branchCode": {Mode: domain.ModeEquals, Value: domain.ScalarPtr("MNL"), DataType: domain.DataTypeText},
		},
		Preloads: []string{"branch"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, page.Members, 1)
	assert.Equal(t, "1500.5", page.Members[0].Balance.String())
	assert.Equal(t, "Manila", page.Members[0].Branch.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMembers_SkipsPageQueryWhenEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM members`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := repository.NewStore(db, repository.Postgres).FindMembers(context.Background(), domain.MemberQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Members)
	assert.NotNil(t, page.Members)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMembers_CountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(sql.ErrConnDone)

	_, err = repository.NewStore(db, repository.Postgres).FindMembers(context.Background(), domain.MemberQuery{})
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStore_SaveMembers_MySQLSQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	branchSQL := "INSERT INTO branches (code, name, company_code) VALUES (?, ?, ?)" +
		" ON DUPLICATE KEY UPDATE name = VALUES(name), company_code = VALUES(company_code)"
	memberSQL := "INSERT INTO members (id, member_no, full_name, branch_code, company_code, balance, joined_on, active)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?)" +
		" ON DUPLICATE KEY UPDATE member_no = VALUES(member_no), full_name = VALUES(full_name)," +
		" branch_code = VALUES(branch_code), company_code = VALUES(company_code), balance = VALUES(balance)," +
		" joined_on = VALUES(joined_on), active = VALUES(active)"

	m := testMembers[0]
	mock.ExpectBegin()
	mock.ExpectExec(branchSQL).
		WithArgs("MNL", "Manila", "C1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(memberSQL).
		WithArgs(m.ID, m.MemberNo, m.FullName, m.BranchCode, m.CompanyCode, "1500.5", "2023-01-15", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := repository.NewStore(db, repository.MySQL)
	require.NoError(t, store.SaveMembers(context.Background(), testBranches[:1], []domain.Member{m}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindMembers_MySQLScansText(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM members`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, member_no`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_no", "full_name", "branch_code", "company_code", "balance", "joined_on", "active"}).
			AddRow("m3", "M-003", "Juanito Reyes", "CEB", "C1", []byte("99.99"), []byte("2024-02-29"), int64(0)))

	page, err := repository.NewStore(db, repository.MySQL).FindMembers(context.Background(), domain.MemberQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Members, 1)
	got := page.Members[0]
	assert.Equal(t, "99.99", got.Balance.String())
	assert.Equal(t, date("2024-02-29"), got.JoinedOn)
	assert.False(t, got.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore runs the behavior checks against a real PostgreSQL.
func TestPostgresStore(t *testing.T) {
	cfg, err := config.LoadTestConfig()
	require.NoError(t, err)
	pgURL := cfg.PostgresURL
	if pgURL == "" {
		t.Skip("TEST_POSTGRES_URL not set, skipping PostgreSQL tests")
	}

	ctx := context.Background()
	store, err := sqlstorage.NewPostgresStore(ctx, pgURL)
	require.NoError(t, err)
	defer store.Close()

	// Cleanup: truncate tables after test
	defer func() {
		store.DB().Exec("TRUNCATE TABLE members, branches CASCADE")
	}()

	require.NoError(t, store.SaveMembers(ctx, testBranches, testMembers))

	page, err := store.FindMembers(ctx, domain.MemberQuery{
		Filters: domain.FilterMap{
			"fullName": {Mode: domain.ModeContains, Value: domain.ScalarPtr("JUAN"), DataType: domain.DataTypeText},
			"joinedOn": {Mode: domain.ModeRange, To: domain.ScalarPtr("2023-12-31"), DataType: domain.DataTypeDate},
		},
		Preloads: []string{"branch"},
		Limit:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Members, 1)
	assert.Equal(t, "m1", page.Members[0].ID)
	assert.Equal(t, "Manila", page.Members[0].Branch.Name)
}

// TestMySQLStore runs the behavior checks against a real MySQL.
func TestMySQLStore(t *testing.T) {
	cfg, err := config.LoadTestConfig()
	require.NoError(t, err)
	if cfg.MySQLDSN == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL tests")
	}

	ctx := context.Background()
	store, err := sqlstorage.NewMySQLStore(ctx, cfg.MySQLDSN)
	require.NoError(t, err)
	defer store.Close()

	defer func() {
		store.DB().Exec("DELETE FROM members")
		store.DB().Exec("DELETE FROM branches")
	}()

	require.NoError(t, store.SaveMembers(ctx, testBranches, testMembers))

	page, err := store.FindMembers(ctx, domain.MemberQuery{
		Filters: domain.FilterMap{
			"fullName": {Mode: domain.ModeContains, Value: domain.ScalarPtr("100%"), DataType: domain.DataTypeText},
		},
		Preloads: []string{"branch"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, page.Members, 1)
	assert.Equal(t, "m4", page.Members[0].ID)
	assert.Equal(t, "5000", page.Members[0].Balance.String())
	assert.Equal(t, date("2024-08-10"), page.Members[0].JoinedOn)
	assert.Equal(t, "Manila", page.Members[0].Branch.Name)
}

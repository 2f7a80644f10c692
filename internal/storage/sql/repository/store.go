package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
)

// Store implements member.Repository on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore creates a store over an open database using the given dialect.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
// This should be called when shutting down the application.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindMembers returns the page of members matching q plus the total match count.
func (s *Store) FindMembers(ctx context.Context, q domain.MemberQuery) (*domain.MemberPage, error) {
	countStmt, pageStmt, err := buildMemberQueries(s.dialect, q)
	if err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	members := []domain.Member{}
	if total > 0 {
		members, err = s.queryMembers(ctx, pageStmt)
		if err != nil {
			return nil, err
		}
	}

	if slices.Contains(q.Preloads, member.PreloadBranch) && len(members) > 0 {
		if err := s.attachBranches(ctx, members); err != nil {
			return nil, err
		}
	}

	return &domain.MemberPage{Members: members, TotalCount: total}, nil
}

func (s *Store) queryMembers(ctx context.Context, stmt statement) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		var (
			m        domain.Member
			joinedOn dateScanner
		)
		if err := rows.Scan(&m.ID, &m.MemberNo, &m.FullName, &m.BranchCode, &m.CompanyCode, &m.Balance, &joinedOn, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.JoinedOn = joinedOn.Time
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// attachBranches loads the branches referenced by members in one query.
func (s *Store) attachBranches(ctx context.Context, members []domain.Member) error {
	codes := make([]string, 0, len(members))
	for _, m := range members {
		codes = append(codes, m.BranchCode)
	}
	slices.Sort(codes)
	codes = slices.Compact(codes)

	marks := make([]string, len(codes))
	args := make([]any, len(codes))
	for i, code := range codes {
		marks[i] = s.dialect.placeholder(i + 1)
		args[i] = code
	}

	query := "SELECT code, name, company_code FROM branches WHERE code IN (" + strings.Join(marks, ", ") + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	branches := make(map[string]*domain.Branch, len(codes))
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.Code, &b.Name, &b.CompanyCode); err != nil {
			return fmt.Errorf("failed to scan branch: %w", err)
		}
		branches[b.Code] = &b
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate branches: %w", err)
	}

	for i := range members {
		if b, ok := branches[members[i].BranchCode]; ok {
			branch := *b
			members[i].Branch = &branch
		}
	}
	return nil
}

// SaveMembers upserts branches and then members in a single transaction.
func (s *Store) SaveMembers(ctx context.Context, branches []domain.Branch, members []domain.Member) error {
	return s.executeInTransaction(ctx, func(tx *sql.Tx) error {
		branchSQL := "INSERT INTO branches (code, name, company_code) VALUES (" + s.placeholders(3) + ")" +
			s.dialect.upsert("code", "name", "company_code")
		for _, b := range branches {
			if _, err := tx.ExecContext(ctx, branchSQL, b.Code, b.Name, b.CompanyCode); err != nil {
				return fmt.Errorf("failed to save branch %s: %w", b.Code, err)
			}
		}

		memberSQL := "INSERT INTO members (" + memberSelectList + ") VALUES (" + s.placeholders(8) + ")" +
			s.dialect.upsert("id", "member_no", "full_name", "branch_code", "company_code", "balance", "joined_on", "active")
		for _, m := range members {
			if m.ID == "" {
				return fmt.Errorf("%w: member %q has no id", domain.ErrInvalidID, m.MemberNo)
			}
			_, err := tx.ExecContext(ctx, memberSQL,
				m.ID, m.MemberNo, m.FullName, m.BranchCode, m.CompanyCode,
				m.Balance.String(), m.JoinedOn.Format(domain.DateLayout), m.Active)
			if err != nil {
				return fmt.Errorf("failed to save member %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

// executeInTransaction runs fn in a transaction, committing on success and
// rolling back on error or panic.
func (s *Store) executeInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dateScanner reads DATE columns, which PostgreSQL returns as time.Time while
// SQLite and MySQL (without parseTime) return text.
type dateScanner struct {
	Time time.Time
}

func (d *dateScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		d.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into date", src)
}

func (d *dateScanner) parse(s string) error {
	if len(s) >= len(domain.DateLayout) {
		if t, err := time.Parse(domain.DateLayout, s[:len(domain.DateLayout)]); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

var _ member.Repository = (*Store)(nil)

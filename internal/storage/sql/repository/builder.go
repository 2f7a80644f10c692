package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
)

// memberColumns maps resource fields to SQL columns.
var memberColumns = map[string]string{
	member.FieldID:          "id",
	member.FieldMemberNo:    "member_no",
	member.FieldFullName:    "full_name",
	member.FieldBranchCode:  "branch_code",
	member.FieldCompanyCode: "company_code",
	member.FieldBalance:     "balance",
	member.FieldJoinedOn:    "joined_on",
	member.FieldActive:      "active",
}

const memberSelectList = "id, member_no, full_name, branch_code, company_code, balance, joined_on, active"

// statement is a SQL string with its bind arguments.
type statement struct {
	SQL  string
	Args []any
}

// builder accumulates WHERE conditions and their arguments.
type builder struct {
	dialect Dialect
	conds   []string
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(len(b.args))
}

func (b *builder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// buildMemberQueries returns the count and page statements for q.
func buildMemberQueries(d Dialect, q domain.MemberQuery) (count, page statement, err error) {
	b := &builder{dialect: d}

	for _, field := range q.Filters.Fields() {
		if err := b.addFilter(field, q.Filters[field]); err != nil {
			return statement{}, statement{}, err
		}
	}

	if q.IDs != nil {
		if len(q.IDs) == 0 {
			b.conds = append(b.conds, "1 = 0")
		} else {
			marks := make([]string, len(q.IDs))
			for i, id := range q.IDs {
				marks[i] = b.bind(id)
			}
			b.conds = append(b.conds, "id IN ("+strings.Join(marks, ", ")+")")
		}
	}

	orderBy, err := orderClause(q.Sort)
	if err != nil {
		return statement{}, statement{}, err
	}

	where := b.where()
	count = statement{
		SQL:  "SELECT COUNT(*) FROM members" + where,
		Args: append([]any(nil), b.args...),
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(memberSelectList)
	sb.WriteString(" FROM members")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", b.bind(q.Limit), b.bind(max(q.Offset, 0)))
	}
	page = statement{SQL: sb.String(), Args: b.args}

	return count, page, nil
}

func (b *builder) addFilter(field string, f domain.FilterDescriptor) error {
	col, ok := memberColumns[field]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	if !f.Active() {
		return nil
	}

	if f.IsRange() {
		if f.From != nil {
			v, err := sqlArg(f.DataType, *f.From)
			if err != nil {
				return fmt.Errorf("%s from: %w", field, err)
			}
			b.conds = append(b.conds, col+" >= "+b.bind(v))
		}
		if f.To != nil {
			v, err := sqlArg(f.DataType, *f.To)
			if err != nil {
				return fmt.Errorf("%s to: %w", field, err)
			}
			b.conds = append(b.conds, col+" <= "+b.bind(v))
		}
		return nil
	}

	v, err := sqlArg(f.DataType, *f.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	switch f.Mode {
	case domain.ModeEquals:
		b.conds = append(b.conds, col+" = "+b.bind(v))
	case domain.ModeNotEquals:
		b.conds = append(b.conds, col+" <> "+b.bind(v))
	case domain.ModeLessThan:
		b.conds = append(b.conds, col+" < "+b.bind(v))
	case domain.ModeLessThanOrEqual:
		b.conds = append(b.conds, col+" <= "+b.bind(v))
	case domain.ModeGreaterThan:
		b.conds = append(b.conds, col+" > "+b.bind(v))
	case domain.ModeGreaterThanOrEqual:
		b.conds = append(b.conds, col+" >= "+b.bind(v))
	case domain.ModeContains, domain.ModeStartsWith, domain.ModeEndsWith:
		text, _ := v.(string)
		pattern := escapeLike(text)
		switch f.Mode {
		case domain.ModeContains:
			pattern = "%" + pattern + "%"
		case domain.ModeStartsWith:
			pattern += "%"
		case domain.ModeEndsWith:
			pattern = "%" + pattern
		}
		b.conds = append(b.conds, fmt.Sprintf("%s %s %s ESCAPE %s", col, b.dialect.caseInsensitiveOp, b.bind(pattern), b.dialect.likeEscape))
	default:
		return fmt.Errorf("%w: %q", domain.ErrModeNotSupported, f.Mode)
	}
	return nil
}

// sqlArg parses an operand into a driver-friendly value. Dates bind as
// YYYY-MM-DD text so both dialects compare them as calendar dates.
func sqlArg(dt domain.DataType, s domain.Scalar) (any, error) {
	v, err := domain.ParseOperand(dt, s)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String(), nil
	case time.Time:
		return x.Format(domain.DateLayout), nil
	}
	return v, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderClause renders the sort rules, defaulting to member number, with id as
// the final tiebreak so pages are stable.
func orderClause(sort domain.SortState) (string, error) {
	parts := make([]string, 0, len(sort)+1)
	hasID := false
	for _, rule := range sort {
		col, ok := memberColumns[rule.Field]
		if !ok {
			return "", fmt.Errorf("%w: sort field %q", domain.ErrUnknownField, rule.Field)
		}
		dir := "ASC"
		if rule.Direction == domain.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		hasID = hasID || col == "id"
	}
	if len(parts) == 0 {
		parts = append(parts, "member_no ASC")
	}
	if !hasID {
		parts = append(parts, "id ASC")
	}
	return strings.Join(parts, ", "), nil
}

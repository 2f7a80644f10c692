package member

import "github.com/coopdesk/backoffice/internal/domain"

// Column is one field of the member resource as exposed to tables.
type Column struct {
	Field    string
	Header   string
	DataType domain.DataType
	Sortable bool
}

// Field names of the member resource.
const (
	FieldID          = "id"
	FieldMemberNo    = "memberNo"
	FieldFullName    = "fullName"
	FieldBranchCode  = "branchCode"
	FieldCompanyCode = "companyCode"
	FieldBalance     = "balance"
	FieldJoinedOn    = "joinedOn"
	FieldActive      = "active"
)

// PreloadBranch attaches each member's branch record.
const PreloadBranch = "branch"

// Columns lists the member fields in display order.
var Columns = []Column{
	{Field: FieldMemberNo, Header: "Member No", DataType: domain.DataTypeText, Sortable: true},
	{Field: FieldFullName, Header: "Full Name", DataType: domain.DataTypeText, Sortable: true},
	{Field: FieldBranchCode, Header: "Branch", DataType: domain.DataTypeText, Sortable: true},
	{Field: FieldCompanyCode, Header: "Company", DataType: domain.DataTypeText, Sortable: true},
	{Field: FieldBalance, Header: "Balance", DataType: domain.DataTypeNumber, Sortable: true},
	{Field: FieldJoinedOn, Header: "Joined", DataType: domain.DataTypeDate, Sortable: true},
	{Field: FieldActive, Header: "Active", DataType: domain.DataTypeBoolean, Sortable: false},
}

var columnsByField = func() map[string]Column {
	m := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		m[c.Field] = c
	}
	return m
}()

// LookupColumn returns the column for field.
func LookupColumn(field string) (Column, bool) {
	c, ok := columnsByField[field]
	return c, ok
}

// Value returns the display text of field for m.
func Value(m domain.Member, field string) string {
	switch field {
	case FieldID:
		return m.ID
	case FieldMemberNo:
		return m.MemberNo
	case FieldFullName:
		return m.FullName
	case FieldBranchCode:
		if m.Branch != nil && m.Branch.Name != "" {
			return m.BranchCode + " - " + m.Branch.Name
		}
		return m.BranchCode
	case FieldCompanyCode:
		return m.CompanyCode
	case FieldBalance:
		return m.Balance.StringFixed(2)
	case FieldJoinedOn:
		return m.JoinedOn.Format(domain.DateLayout)
	case FieldActive:
		if m.Active {
			return "Yes"
		}
		return "No"
	}
	return ""
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is a cooperative member as served by the member directory API.
type Member struct {
	ID          string          `json:"id"`
	MemberNo    string          `json:"memberNo"`
	FullName    string          `json:"fullName"`
	BranchCode  string          `json:"branchCode"`
	CompanyCode string          `json:"companyCode"`
	Balance     decimal.Decimal `json:"balance"`
	JoinedOn    time.Time       `json:"joinedOn"`
	Active      bool            `json:"active"`

	// Branch is populated only when the "branch" preload is requested.
	Branch *Branch `json:"branch,omitempty"`
}

// Branch is a cooperative branch office.
type Branch struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	CompanyCode string `json:"companyCode"`
}

// MemberQuery is the validated, repository-ready form of a member list request.
//
// Filters have been checked against the member column catalog and their
// operands parsed for the column's data type.
type MemberQuery struct {
	Filters  FilterMap
	Sort     SortState
	IDs      []string // Restrict to these IDs (export of a row selection); nil = no restriction
	Preloads []string
	Limit    int // Maximum rows returned; 0 = no limit (exports)
	Offset   int
}

// MemberPage is a page of members plus the total match count.
type MemberPage struct {
	Members    []Member
	TotalCount int
}

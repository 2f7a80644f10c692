package cli

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/table"
)

// renderMembers writes rows as an aligned text table of the given columns.
func renderMembers(w io.Writer, columns []table.Column, rows []domain.Member) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = strings.ToUpper(col.Header)
	}
	if _, err := io.WriteString(tw, strings.Join(headers, "\t")+"\n"); err != nil {
		return err
	}

	cells := make([]string, len(columns))
	for _, m := range rows {
		for i, col := range columns {
			cells[i] = member.Value(m, col.ID)
		}
		if _, err := io.WriteString(tw, strings.Join(cells, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

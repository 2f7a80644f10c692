package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/fetch"
	"github.com/coopdesk/backoffice/internal/query"
)

func newMembersCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List and export cooperative members",
	}
	cmd.AddCommand(newMembersListCommand(opts), newMembersExportCommand(opts))
	return cmd
}

func newMembersListCommand(opts *globalOptions) *cobra.Command {
	var (
		tf     tableFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of members",
		Example: `  backofficectl members list -f fullName=juan -f balance:range=1000.. --sort balance:desc
  backofficectl members list --view 6f1c... --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd)
			defer cancel()

			client, err := opts.client()
			if err != nil {
				return err
			}
			coordinator, err := tf.newTable(ctx, client, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			defer coordinator.Close()

			binding := fetch.NewBinding(coordinator, fetch.NewResource[domain.Member](client, membersTable),
				fetch.WithBindingLogger(opts.logger))
			page, err := binding.Refresh(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(page)
			}
			if err := renderMembers(out, coordinator.VisibleColumns(), coordinator.Rows()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, pageLabel(coordinator.State().Pagination.PageIndex, page.TotalPage, page.TotalSize))
			return err
		},
	}

	tf.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw page as JSON")
	return cmd
}

func newMembersExportCommand(opts *globalOptions) *cobra.Command {
	var (
		tf       tableFlags
		format   string
		output   string
		selected []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download members as a spreadsheet or PDF",
		Long: `Export renders every member matching the filters, in the requested order.
With --select only the listed member ids are exported and filters are ignored.`,
		Example: `  backofficectl members export -f branchCode:equals=MNL --format xlsx
  backofficectl members export --select m-1,m-7 --format pdf -o picked.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd)
			defer cancel()

			exportFormat, err := query.ParseExportFormat(format)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			resource := fetch.NewResource[domain.Member](client, membersTable)

			var (
				buf  bytes.Buffer
				name string
			)
			if len(selected) > 0 {
				req := query.ExportRequest{RowIDs: selected, Format: exportFormat}
				if err := req.Validate(); err != nil {
					return err
				}
				name, err = resource.Export(ctx, req, &buf)
			} else {
				coordinator, terr := tf.newTable(ctx, client, cmd.Flags().Changed)
				if terr != nil {
					return terr
				}
				defer coordinator.Close()
				name, err = fetch.NewBinding(coordinator, resource).Export(ctx, exportFormat, &buf)
			}
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if output == "" {
				output = filepath.Base(name)
			}
			// Readers of output never see a partially written file.
			if err := atomic.WriteFile(output, &buf); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", output, buf.Len())
			return err
		},
	}

	tf.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", string(query.FormatXLSX), "file format: xlsx or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default: server-suggested name)`)
	cmd.Flags().StringSliceVar(&selected, "select", nil, "export only these member ids")
	return cmd
}

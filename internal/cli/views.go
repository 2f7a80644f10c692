package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/fetch"
)

func newViewsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved member table views",
	}
	cmd.AddCommand(
		newViewsListCommand(opts),
		newViewsShowCommand(opts),
		newViewsSaveCommand(opts),
		newViewsDeleteCommand(opts),
	)
	return cmd
}

func newViewsListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd)
			defer cancel()

			client, err := opts.client()
			if err != nil {
				return err
			}
			views, err := fetch.NewViews(client, membersTable).List(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFILTERS\tSORT\tCREATED")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.ID, v.Name, len(v.Filters), v.Sort, v.CreatedAt.Format(domain.DateLayout))
			}
			return tw.Flush()
		},
	}
}

func newViewsShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a saved view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd)
			defer cancel()

			client, err := opts.client()
			if err != nil {
				return err
			}
			v, err := fetch.NewViews(client, membersTable).Get(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}

func newViewsSaveCommand(opts *globalOptions) *cobra.Command {
	var (
		tf   tableFlags
		name string
		id   string
	)

	cmd := &cobra.Command{
		Use:     "save",
		Short:   "Save the table state described by the flags as a view",
		Example: `  backofficectl views save --name manila-active -f branchCode:equals=MNL -f active=true --sort fullName`,
		Args:    cobra.NoArgs,
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

			v := coordinator.View(membersTable, name)
			v.ID = id
			saved, err := fetch.NewViews(client, membersTable).Save(ctx, v)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return err
		},
	}

	tf.register(cmd.Flags())
	cmd.Flags().StringVar(&name, "name", "", "view name (letters, digits, - and _)")
	cmd.Flags().StringVar(&id, "id", "", "replace the view with this id instead of creating one")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newViewsDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd)
			defer cancel()

			client, err := opts.client()
			if err != nil {
				return err
			}
			return fetch.NewViews(client, membersTable).Delete(ctx, args[0])
		},
	}
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coopdesk/backoffice/internal/query"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Encode and decode shareable table query tokens",
	}
	cmd.AddCommand(newQueryEncodeCommand(), newQueryDecodeCommand())
	return cmd
}

func newQueryEncodeCommand() *cobra.Command {
	var (
		tf   tableFlags
		base string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the q token for the table state described by the flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tf.view != "" {
				return errors.New("--view is not supported by query encode")
			}
			coordinator, err := tf.newTable(cmd.Context(), nil, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			defer coordinator.Close()

			token, err := coordinator.Request().Encode()
			if err != nil {
				return err
			}
			if base == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			}

			u, err := url.Parse(strings.TrimRight(base, "/") + "/" + membersTable)
			if err != nil {
				return fmt.Errorf("invalid --url: %w", err)
			}
			u.RawQuery = url.Values{query.Param: {token}}.Encode()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u.String())
			return err
		},
	}

	tf.register(cmd.Flags())
	cmd.Flags().StringVar(&base, "url", "", "print a full members URL rooted here instead of the bare token")
	return cmd
}

func newQueryDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Print the table query carried by a q token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := query.Decode(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(req)
		},
	}
}

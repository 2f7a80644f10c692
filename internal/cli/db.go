package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"

	"github.com/coopdesk/backoffice/internal/config"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/env"
	"github.com/coopdesk/backoffice/internal/ptr"
	sqlstorage "github.com/coopdesk/backoffice/internal/storage/sql"
)

// seedFile is the JSON document accepted by "db seed". Comments and
// trailing commas are accepted (HuJSON).
type seedFile struct {
	Branches []domain.Branch `json:"branches"`
	Members  []seedMember    `json:"members"`
}

// seedMember mirrors domain.Member with a calendar-date joinedOn.
type seedMember struct {
	ID          string          `json:"id"`
	MemberNo    string          `json:"memberNo"`
	FullName    string          `json:"fullName"`
	BranchCode  string          `json:"branchCode"`
	CompanyCode string          `json:"companyCode"`
	Balance     decimal.Decimal `json:"balance"`
	JoinedOn    string          `json:"joinedOn"`
	Active      *bool           `json:"active"`
}

func (s seedMember) member() (domain.Member, error) {
	joined, err := time.Parse(domain.DateLayout, s.JoinedOn)
	if err != nil {
		return domain.Member{}, fmt.Errorf("member %q: joinedOn must be YYYY-MM-DD: %w", s.MemberNo, err)
	}
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Member{
		ID:          id,
		MemberNo:    s.MemberNo,
		FullName:    s.FullName,
		BranchCode:  s.BranchCode,
		CompanyCode: s.CompanyCode,
		Balance:     s.Balance,
		JoinedOn:    joined,
		Active:      ptr.Deref(s.Active, true),
	}, nil
}

func loadSeed(path string) ([]domain.Branch, []domain.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	// Seed files are edited by hand: comments and trailing commas are allowed.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var file seedFile
	if err := json.Unmarshal(standardized, &file); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	members := make([]domain.Member, 0, len(file.Members))
	for _, sm := range file.Members {
		m, err := sm.member()
		if err != nil {
			return nil, nil, err
		}
		members = append(members, m)
	}
	return file.Branches, members, nil
}

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Operate on the member database directly",
		Long: `Database commands connect with the server's BACKOFFICE_DB_* settings
and apply pending migrations first.`,
	}
	cmd.AddCommand(newDBSeedCommand())
	return cmd
}

const seedExample = `  BACKOFFICE_DB_DRIVER=sqlite BACKOFFICE_DB_DSN=./members.db backofficectl db seed members.json`

func newDBSeedCommand() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:     "seed FILE",
		Short:   "Upsert branches and members from a JSON file",
		Example: seedExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			branches, members, err := loadSeed(args[0])
			if err != nil {
				return err
			}

			// Flags win over the environment; env.Load then validates the result.
			var dbCfg config.DatabaseConfig
			if cmd.Flags().Changed("driver") {
				os.Setenv("BACKOFFICE_DB_DRIVER", driver)
			}
			if cmd.Flags().Changed("dsn") {
				os.Setenv("BACKOFFICE_DB_DSN", dsn)
			}
			if err := env.Load(&dbCfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := sqlstorage.NewStore(ctx, sqlstorage.DBConfig{
				Driver:          dbCfg.Driver,
				DSN:             dbCfg.DSN,
				MaxOpenConns:    dbCfg.MaxOpenConns,
				MaxIdleConns:    dbCfg.MaxIdleConns,
				ConnMaxLifetime: dbCfg.ConnMaxLifetime,
				ConnMaxIdleTime: dbCfg.ConnMaxIdleTime,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveMembers(ctx, branches, members); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d branches, %d members\n", len(branches), len(members))
			return err
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "override BACKOFFICE_DB_DRIVER")
	cmd.Flags().StringVar(&dsn, "dsn", "", "override BACKOFFICE_DB_DSN")
	return cmd
}

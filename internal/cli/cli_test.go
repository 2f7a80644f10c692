package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/application/auth"
	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/application/view"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/infrastructure/export"
	httpserver "github.com/coopdesk/backoffice/internal/infrastructure/http"
	"github.com/coopdesk/backoffice/internal/infrastructure/http/handler"
	"github.com/coopdesk/backoffice/internal/infrastructure/keygen"
	"github.com/coopdesk/backoffice/internal/query"
	"github.com/coopdesk/backoffice/internal/storage/fs"
	sqlstorage "github.com/coopdesk/backoffice/internal/storage/sql"
)

const testSecret = "0123456789abcdef0123456789abcdef"

const seedJSON = `{
  "branches": [
    {"code": "MNL", "name": "Manila", "companyCode": "C1"},
    {"code": "CEB", "name": "Cebu", "companyCode": "C1"}
  ],
  "members": [
    {"id": "m1", "memberNo": "M-001", "fullName": "Juan Dela Cruz", "branchCode": "MNL", "companyCode": "C1", "balance": "100.00", "joinedOn": "2021-03-15"},
    {"id": "m2", "memberNo": "M-002", "fullName": "Maria Santos", "branchCode": "MNL", "companyCode": "C1", "balance": 250.5, "joinedOn": "2022-07-01"},
    {"id": "m3", "memberNo": "M-003", "fullName": "Juanito Reyes", "branchCode": "CEB", "companyCode": "C1", "balance": "300", "joinedOn": "2023-01-20"},
    {"id": "m4", "memberNo": "M-004", "fullName": "Ana Garcia", "branchCode": "CEB", "companyCode": "C1", "balance": "50", "joinedOn": "2023-06-30", "active": false},
    {"id": "m5", "memberNo": "M-005", "fullName": "Pedro Penduko", "branchCode": "MNL", "companyCode": "C1", "balance": "1000", "joinedOn": "2024-02-29"}
  ]
}`

// execute runs the command tree and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// testAPI seeds a SQLite database through "db seed" and serves it.
// It returns the API base URL and a valid token.
func testAPI(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("BACKOFFICE_JWT_SECRET", testSecret)

	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedJSON), 0o600))
	dbPath := filepath.Join(dir, "members.db")

	// t.Setenv restores the variables the seed command overrides.
	t.Setenv("BACKOFFICE_DB_DRIVER", "")
	t.Setenv("BACKOFFICE_DB_DSN", "")
	out, _, err := execute(t, "db", "seed", "--driver", "sqlite", "--dsn", dbPath, seedPath)
	require.NoError(t, err)
	assert.Equal(t, "seeded 2 branches, 5 members\n", out)

	ctx := context.Background()
	store, err := sqlstorage.NewSQLiteStore(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	views, err := fs.NewStore(filepath.Join(dir, "views"))
	require.NoError(t, err)

	authenticator, err := auth.NewAuthenticator(auth.Config{Secret: []byte(testSecret)})
	require.NoError(t, err)

	members := member.NewService(store, map[query.ExportFormat]member.Exporter{
		query.FormatXLSX: export.NewXLSX(),
		query.FormatPDF:  export.NewPDF(),
	}, member.Config{})
	srv := httpserver.NewAPIServer(handler.NewRouter(members, view.NewService(views)), authenticator, httpserver.ServerConfig{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	token, _, err := execute(t, "token", "issue", "--subject", "clerk@coop", "--ttl", "10m")
	require.NoError(t, err)
	return ts.URL + "/api/v1", strings.TrimSpace(token)
}

func TestCLI_MembersList(t *testing.T) {
	apiURL, token := testAPI(t)
	base := []string{"--api-url", apiURL, "--token", token}

	tests := []struct {
		name     string
		args     []string
		contains []string
		absent   []string
		footer   string
	}{
		{
			name:     "text filter with chosen columns",
			args:     []string{"-f", "fullName=juan", "--columns", "memberNo,fullName"},
			contains: []string{"MEMBER NO", "FULL NAME", "Juan Dela Cruz", "Juanito Reyes"},
			absent:   []string{"Maria Santos", "BALANCE"},
			footer:   "page 1 of 1 (2 members)",
		},
		{
			name:     "sort and page size",
			args:     []string{"--sort", "balance:desc", "--page-size", "2"},
			contains: []string{"Pedro Penduko", "Juanito Reyes", "1000.00"},
			absent:   []string{"Maria Santos"},
			footer:   "page 1 of 3 (5 members)",
		},
		{
			name:     "second page",
			args:     []string{"--sort", "balance:desc", "--page-size", "2", "--page", "2"},
			contains: []string{"Maria Santos", "Juan Dela Cruz"},
			footer:   "page 2 of 3 (5 members)",
		},
		{
			name:     "numeric range",
			args:     []string{"-f", "balance:range=100..300"},
			contains: []string{"M-001", "M-002", "M-003"},
			absent:   []string{"M-004", "M-005"},
			footer:   "page 1 of 1 (3 members)",
		},
		{
			name:     "open ended date range and boolean",
			args:     []string{"-f", "joinedOn:range=2023-01-01..", "-f", "active=true"},
			contains: []string{"M-003", "M-005"},
			absent:   []string{"M-004", "M-001"},
			footer:   "page 1 of 1 (2 members)",
		},
		{
			name:     "branch preload",
			args:     []string{"-f", "branchCode:equals=CEB", "--preload", "branch"},
			contains: []string{"CEB - Cebu"},
			footer:   "page 1 of 1 (2 members)",
		},
		{
			name:   "no matches",
			args:   []string{"-f", "fullName=nobody"},
			footer: "no members",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{"members", "list"}, base...), tt.args...)
			out, _, err := execute(t, args...)
			require.NoError(t, err)

			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
			assert.True(t, strings.HasSuffix(out, tt.footer+"\n"), out)
		})
	}
}

func TestCLI_MembersListJSON(t *testing.T) {
	apiURL, token := testAPI(t)

	out, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", token, "--json", "-f", "memberNo:equals=M-002")
	require.NoError(t, err)

	var page query.Response[domain.Member]
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "m2", page.Data[0].ID)
	assert.Equal(t, "250.5", page.Data[0].Balance.String())
}

func TestCLI_MembersListErrors(t *testing.T) {
	apiURL, token := testAPI(t)

	t.Run("bad token", func(t *testing.T) {
		_, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", "nope")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", token, "-f", "salary=1")
		assert.ErrorIs(t, err, domain.ErrUnknownField)
	})

	t.Run("range on text", func(t *testing.T) {
		_, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", token, "-f", "fullName:range=a..b")
		assert.ErrorIs(t, err, domain.ErrRangeNotSupported)
	})

	t.Run("invalid page", func(t *testing.T) {
		_, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", token, "--page", "0")
		assert.ErrorIs(t, err, domain.ErrInvalidPagination)
	})

	t.Run("bad operand rejected by server", func(t *testing.T) {
		_, _, err := execute(t, "members", "list", "--api-url", apiURL, "--token", token, "-f", "balance=lots")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestCLI_MembersExport(t *testing.T) {
	apiURL, token := testAPI(t)
	dir := t.TempDir()

	t.Run("selection to file", func(t *testing.T) {
		path := filepath.Join(dir, "picked.xlsx")
		_, stderr, err := execute(t, "members", "export", "--api-url", apiURL, "--token", token,
			"--select", "m2,m5", "-o", path)
		require.NoError(t, err)
		assert.Contains(t, stderr, "wrote "+path)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	})

	t.Run("filtered pdf to stdout", func(t *testing.T) {
		out, _, err := execute(t, "members", "export", "--api-url", apiURL, "--token", token,
			"-f", "branchCode:equals=MNL", "--format", "pdf", "-o", "-")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "%PDF"))
	})

	t.Run("empty result", func(t *testing.T) {
		_, _, err := execute(t, "members", "export", "--api-url", apiURL, "--token", token,
			"-f", "fullName=nobody", "-o", filepath.Join(dir, "none.xlsx"))
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.NoFileExists(t, filepath.Join(dir, "none.xlsx"))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, "members", "export", "--api-url", apiURL, "--token", token, "--format", "csv")
		assert.ErrorIs(t, err, domain.ErrInvalidExportFormat)
	})
}

func TestCLI_Views(t *testing.T) {
	apiURL, token := testAPI(t)
	base := []string{"--api-url", apiURL, "--token", token}
	run := func(args ...string) string {
		t.Helper()
		out, _, err := execute(t, append(args, base...)...)
		require.NoError(t, err)
		return out
	}

	id := strings.TrimSpace(run("views", "save", "--name", "juans",
		"-f", "fullName=juan", "--columns", "memberNo,fullName", "--sort", "memberNo:desc"))
	require.NotEmpty(t, id)

	assert.Contains(t, run("views", "list"), "juans")

	out := run("members", "list", "--view", id)
	assert.Contains(t, out, "MEMBER NO")
	assert.NotContains(t, out, "BALANCE")
	assert.Less(t, strings.Index(out, "M-003"), strings.Index(out, "M-001"), "view sort applies")
	assert.True(t, strings.HasSuffix(out, "page 1 of 1 (2 members)\n"), out)

	var shown domain.View
	require.NoError(t, json.Unmarshal([]byte(run("views", "show", id)), &shown))
	assert.Equal(t, "juans", shown.Name)
	assert.Contains(t, shown.HiddenColumns, member.FieldBalance)

	run("views", "delete", id)
	_, _, err := execute(t, append([]string{"views", "show", id}, base...)...)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCLI_QueryEncodeDecode(t *testing.T) {
	token, _, err := execute(t, "query", "encode", "-f", "fullName=juan", "--sort", "balance:desc", "--page", "2")
	require.NoError(t, err)
	token = strings.TrimSpace(token)

	req, err := query.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Pagination.PageIndex)
	assert.Equal(t, domain.SortState{{Field: "balance", Direction: domain.SortDesc}}, req.Sort)
	require.Contains(t, req.Filters, "fullName")
	assert.Equal(t, domain.ModeContains, req.Filters["fullName"].Mode)

	out, _, err := execute(t, "query", "decode", token)
	require.NoError(t, err)
	assert.Contains(t, out, `"pageIndex": 1`)

	link, _, err := execute(t, "query", "encode", "-f", "active=true", "--url", "https://backoffice.example.coop/app/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://backoffice.example.coop/app/members?q="), link)

	_, _, err = execute(t, "query", "decode", "!!!")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCLI_TokenIssue(t *testing.T) {
	t.Setenv("BACKOFFICE_JWT_SECRET", testSecret)

	out, _, err := execute(t, "token", "issue", "--subject", "clerk@coop", "--ttl", "1h")
	require.NoError(t, err)

	authenticator, err := auth.NewAuthenticator(auth.Config{Secret: []byte(testSecret)})
	require.NoError(t, err)
	principal, err := authenticator.Validate(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "clerk@coop", principal.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), principal.ExpiresAt, time.Minute)

	t.Run("requires a secret", func(t *testing.T) {
		t.Setenv("BACKOFFICE_JWT_SECRET", "short")
		_, _, err := execute(t, "token", "issue", "--subject", "clerk@coop")
		assert.Error(t, err)
	})
}

func TestCLI_TokenSecret(t *testing.T) {
	out, stderr, err := execute(t, "token", "secret")
	require.NoError(t, err)

	secret := strings.TrimSpace(out)
	assert.Len(t, secret, 43)
	assert.Equal(t, "fingerprint "+keygen.Fingerprint([]byte(secret))+"\n", stderr)

	t.Setenv("BACKOFFICE_JWT_SECRET", secret)
	_, _, err = execute(t, "token", "issue", "--subject", "ops")
	assert.NoError(t, err, "generated secrets are accepted by the authenticator")

	_, _, err = execute(t, "token", "secret", "--bytes", "8")
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		raw     string
		field   string
		want    domain.FilterDescriptor
		wantErr error
	}{
		{
			raw:   "fullName=juan",
			field: "fullName",
			want:  domain.FilterDescriptor{Mode: domain.ModeContains, Value: domain.ScalarPtr("juan"), DataType: domain.DataTypeText},
		},
		{
			raw:   "balance:greaterThan=100",
			field: "balance",
			want:  domain.FilterDescriptor{Mode: domain.ModeGreaterThan, Value: domain.ScalarPtr("100"), DataType: domain.DataTypeNumber},
		},
		{
			raw:   "joinedOn:range=..2023-12-31",
			field: "joinedOn",
			want:  domain.FilterDescriptor{Mode: domain.ModeRange, To: domain.ScalarPtr("2023-12-31"), DataType: domain.DataTypeDate},
		},
		{raw: "fullName", wantErr: domain.ErrInvalidFilter},
		{raw: "salary=1", wantErr: domain.ErrUnknownField},
		{raw: "active:contains=yes", wantErr: domain.ErrModeNotSupported},
		{raw: "balance:range=100", wantErr: domain.ErrInvalidFilter},
		{raw: "fullName:range=a..b", wantErr: domain.ErrRangeNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			field, got, err := parseFilter(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, field)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestLoadSeed_InvalidDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"members":[{"memberNo":"M-9","joinedOn":"15/03/2021"}]}`), 0o600))

	_, _, err := loadSeed(path)
	assert.ErrorContains(t, err, `member "M-9": joinedOn must be YYYY-MM-DD`)
}

func TestLoadSeed_AcceptsCommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// head office
		"branches": [{"code": "MNL", "name": "Manila", "companyCode": "C1"},],
		"members": [
			{"id": "m1", "memberNo": "M-001", "fullName": "Juan Dela Cruz", "branchCode": "MNL",
			 "companyCode": "C1", "balance": "10.50", "joinedOn": "2023-01-15", "active": false},
		],
	}`), 0o600))

	branches, members, err := loadSeed(path)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "Manila", branches[0].Name)
	require.Len(t, members, 1)
	assert.Equal(t, "m1", members[0].ID)
	assert.Equal(t, "10.5", members[0].Balance.String())
	assert.False(t, members[0].Active)
}

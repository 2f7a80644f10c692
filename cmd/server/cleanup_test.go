package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/config"
)

type ctxKey string

func TestNewCleanup_RunsStepsInOrder(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey("test"), "marker")
	var callOrder []string
	var received context.Context

	cleanup := newCleanup(
		closer{"view store", func(ctx context.Context) error {
			callOrder = append(callOrder, "views")
			return errors.New("bucket gone")
		}},
		closer{"member store", func(ctx context.Context) error {
			callOrder = append(callOrder, "members")
			return nil
		}},
		closer{"telemetry", func(ctx context.Context) error {
			received = ctx
			callOrder = append(callOrder, "telemetry")
			return nil
		}},
	)

	cleanup(ctx)

	require.Equal(t, []string{"views", "members", "telemetry"}, callOrder)
	require.Equal(t, "marker", received.Value(ctxKey("test")))
}

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		driver string
		in     string
		want   string
	}{
		{config.DriverPostgres, "postgres://app:secret@db:5432/backoffice", "postgres://app:xxxxxx@db:5432/backoffice"},
		{config.DriverPostgres, "postgres://app@db/backoffice", "postgres://app@db/backoffice"},
		{config.DriverSQLite, "/var/lib/backoffice/members.db", "/var/lib/backoffice/members.db"},
		{config.DriverPostgres, "postgres://%zz", "[REDACTED]"},
		{config.DriverPostgres, "host=db user=app password=s3cret dbname=backoffice", "host=db user=app password=xxxxxx dbname=backoffice"},
		{config.DriverPostgres, "host=db password = 'a b\\'c' sslpassword=key", "host=db password = xxxxxx sslpassword=xxxxxx"},
		{config.DriverPostgres, "host=db user=app dbname=backoffice", "host=db user=app dbname=backoffice"},
		{config.DriverMySQL, "app:secret@tcp(db:3306)/backoffice", "app:xxxxxx@tcp(db:3306)/backoffice"},
		{config.DriverMySQL, "app@tcp(db:3306)/backoffice", "app@tcp(db:3306)/backoffice"},
		{config.DriverMySQL, "app:secret@tcp(db:3306)", "[REDACTED]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, maskPassword(tt.driver, tt.in))
	}
}

func TestShutdownWithTimeout_UsesLiveContext(t *testing.T) {
	var got context.Context
	var errDuring error
	shutdownWithTimeout(func(ctx context.Context) {
		got = ctx
		errDuring = ctx.Err()
	})

	require.NotNil(t, got)
	assert.NoError(t, errDuring)
	_, hasDeadline := got.Deadline()
	assert.True(t, hasDeadline)
	assert.Error(t, got.Err(), "context is released once cleanup returns")
}

func TestNewViewStore_FS(t *testing.T) {
	dir := t.TempDir()
	store, closeFn, err := newViewStore(context.Background(), configFS(dir))
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, closeFn())

	views, err := store.List(context.Background(), "members")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func configFS(dir string) config.ViewStoreConfig {
	return config.ViewStoreConfig{Store: config.ViewStoreFS, Dir: dir}
}

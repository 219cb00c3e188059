package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/logger"
)

func TestMySQLStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	ctx := t.Context()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("camruler"),
		tcmysql.WithUsername("camruler"),
		tcmysql.WithPassword("secret"),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	store, err := OpenMySQL(ctx, &conf.MySQLSettings{
		Enabled:  true,
		Username: "camruler",
		Password: "secret",
		Database: "camruler",
		Host:     host,
		Port:     port.Port(),
	}, logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Append(ctx, scenarioRecord(t, 5)))
	last, err := store.LastProductNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, last)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 15.0, records[0].Width, 1e-9)
}

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "courier",
				"POSTGRES_PASSWORD": "courier",
				"POSTGRES_DB":       "courier",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://courier:courier@%s:%s/courier?sslmode=disable", host, port.Port())
}

func TestWriter_UpsertsDeliveries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := Connect(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	w, err := NewWriter(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	row := domain.EnrichedDelivery{
		DeliveryRecord: domain.DeliveryRecord{
			ID: "SC1000", PickupTime: pickup, DeliveryTime: pickup.Add(time.Hour),
			PackageType: domain.PackageMedium, DistanceKm: 12, Zone: domain.ZoneUrban,
		},
		Hour: 10, Weekday: "Friday", DayType: domain.DayTypeWeekday,
		ActualDeliveryMinutes: 60, ActualDeliveryDisplay: "60.00",
		TheoreticalMinutes: 67.82, Status: domain.StatusOnTime,
	}
	require.NoError(t, w.LoadBatch(ctx, []domain.EnrichedDelivery{row}))

	row.Status = domain.StatusDelayed
	require.NoError(t, w.LoadBatch(ctx, []domain.EnrichedDelivery{row}))

	var n int
	var status string
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(status) FROM deliveries`).Scan(&n, &status))
	assert.Equal(t, 1, n)
	assert.Equal(t, "Delayed", status)
}

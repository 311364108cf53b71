package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/cache"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/config"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/ingest"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
)

func setStoreEnv(t *testing.T, url, key string) {
	t.Helper()
	t.Setenv("DATABASE_URL", url)
	t.Setenv("DATABASE_SERVICE_KEY", key)
	t.Setenv("WEATHER_API_URL", "")
	t.Setenv("INGEST_MODE", "")
	t.Setenv("RETENTION_MAX_AGE", "")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "migrate", "prune"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestBuildTask_SelectsMode(t *testing.T) {
	slot := cache.NewSlot(nil)

	task, err := buildTask(config.Config{Mode: ingest.ModeReadback}, slot, nil, nil)
	assert.Error(t, err, "store is required")
	assert.Nil(t, task)

	task, err = buildTask(config.Config{Mode: ingest.ModeFetch, WeatherAPIURL: "http://127.0.0.1:1"}, slot, nopStore{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ingest.ModeFetch, task.Mode())

	task, err = buildTask(config.Config{Mode: ingest.ModeReadback}, slot, nopStore{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ingest.ModeReadback, task.Mode())
}

func TestIngestCmd_GateClosed(t *testing.T) {
	setStoreEnv(t, "", "")

	root := newRootCmd()
	root.SetArgs([]string{"ingest"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestPruneCmd_RequiresWindow(t *testing.T) {
	setStoreEnv(t, "postgres://localhost:5432/weather", "secret")

	root := newRootCmd()
	root.SetArgs([]string{"prune"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no retention window")
}

func TestMigrateCmd_RequiresStore(t *testing.T) {
	setStoreEnv(t, "請填寫您的_Project_URL", "請填寫您的_Service_Role_Key")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})

	err := root.Execute()
	require.Error(t, err)
}

type nopStore struct{}

func (nopStore) InsertObservation(ctx context.Context, rec models.ObservationRecord) (int64, error) {
	return 0, nil
}

func (nopStore) LatestObservation(ctx context.Context) (*models.StoredObservation, error) {
	return nil, nil
}

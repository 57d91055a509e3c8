package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-raptor/internal/config"
)

func TestFixtureLoader(t *testing.T) {
	cfg := &config.Config{
		TimetableSource: config.SourceFixture,
		GTFSPath:        "../../testdata/line.yml",
		Location:        time.UTC,
	}
	tt, err := newLoader(cfg, nil)(context.Background())
	require.NoError(t, err)
	assert.Len(t, tt.Stops(), 4)
	assert.Len(t, tt.Routes(), 1)
}

func TestServiceDay(t *testing.T) {
	fixed := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	cfg := &config.Config{ServiceDate: fixed, ServiceDateFixed: true, Location: time.UTC}
	assert.Equal(t, fixed, serviceDay(cfg))

	cfg.ServiceDateFixed = false
	day := serviceDay(cfg)
	assert.Equal(t, 0, day.Hour())
	assert.Equal(t, time.Now().UTC().Day(), day.Day())
}

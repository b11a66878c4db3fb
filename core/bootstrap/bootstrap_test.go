package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sharebot/core/config"
	coredatabase "github.com/m3rciful/sharebot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabaseSkipsConnect(t *testing.T) {
	connected := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, errors.New("unexpected")
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.NoError(t, res.Close())

	res, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{},
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
}

func TestRunReportsFailures(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = Run(Options{Config: &coreconfig.Config{}, LoggerInit: func(*coreconfig.Config) error { return boom }})
	assert.ErrorIs(t, err, boom)

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db"},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var steps []string
	boom := errors.New("no such table")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db", Name: "sharebot"},
		LoggerInit: noLogger,
		Migrate: func(cfg coredatabase.Config) error {
			steps = append(steps, "migrate:"+cfg.Name)
			return boom
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, nil
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"migrate:sharebot"}, steps)
}

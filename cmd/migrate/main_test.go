package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   []int
	downSteps []int
	upErr     error
	statusErr error
	state     postgres.MigrationState
	closed    bool
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	return f.upErr
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.downSteps = append(f.downSteps, steps)
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return f.state, f.statusErr
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func withFakeMigrator(t *testing.T, fake *fakeMigrator) *string {
	t.Helper()
	var gotDSN string
	original := openMigrator
	t.Cleanup(func() { openMigrator = original })
	openMigrator = func(_ context.Context, dsn string) (migrator, error) {
		gotDSN = dsn
		return fake, nil
	}
	return &gotDSN
}

func noEnv(string) (string, bool) { return "", false }

func TestRun_Up(t *testing.T) {
	fake := &fakeMigrator{state: postgres.MigrationState{Version: 2, Applied: 2}}
	dsn := withFakeMigrator(t, fake)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-dsn", "postgres://flag"}, noEnv, &out, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "postgres://flag", *dsn)
	assert.Equal(t, []int{0}, fake.upSteps)
	assert.True(t, fake.closed)
	assert.Equal(t, "migrate up ok: version=2 applied=2 pending=0\n", out.String())
}

func TestRun_DownDefaultsToOneStep(t *testing.T) {
	fake := &fakeMigrator{state: postgres.MigrationState{Version: 1, Applied: 1, Pending: []string{"0002_catalog_search"}}}
	dsn := withFakeMigrator(t, fake)

	lookup := func(key string) (string, bool) {
		if key == envPostgresDSN {
			return " postgres://env ", true
		}
		return "", false
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-direction", "DOWN"}, lookup, &out, io.Discard))

	assert.Equal(t, "postgres://env", *dsn)
	assert.Equal(t, []int{1}, fake.downSteps)
	assert.Contains(t, out.String(), "migrate down ok: version=1 applied=1 pending=1")
	assert.Contains(t, out.String(), "pending 0002_catalog_search")
}

func TestRun_StatusDoesNotMigrate(t *testing.T) {
	fake := &fakeMigrator{}
	withFakeMigrator(t, fake)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-direction=status", "-dsn=x"}, noEnv, &out, io.Discard))
	assert.Empty(t, fake.upSteps)
	assert.Empty(t, fake.downSteps)
	assert.Contains(t, out.String(), "migration status: version=0")
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing dsn", func(t *testing.T) {
		err := run(context.Background(), []string{"-direction=status"}, noEnv, io.Discard, io.Discard)
		assert.ErrorContains(t, err, envPostgresDSN)
	})

	t.Run("bad direction", func(t *testing.T) {
		err := run(context.Background(), []string{"-direction=sideways", "-dsn=x"}, noEnv, io.Discard, io.Discard)
		assert.ErrorContains(t, err, "unsupported direction")
	})

	t.Run("negative steps", func(t *testing.T) {
		err := run(context.Background(), []string{"-steps=-1", "-dsn=x"}, noEnv, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("open failure", func(t *testing.T) {
		original := openMigrator
		t.Cleanup(func() { openMigrator = original })
		openMigrator = func(context.Context, string) (migrator, error) { return nil, errors.New("refused") }

		err := run(context.Background(), []string{"-dsn=x"}, noEnv, io.Discard, io.Discard)
		assert.ErrorContains(t, err, "refused")
	})

	t.Run("migrate failure", func(t *testing.T) {
		fake := &fakeMigrator{upErr: errors.New("lock timeout")}
		withFakeMigrator(t, fake)
		err := run(context.Background(), []string{"-dsn=x"}, noEnv, io.Discard, io.Discard)
		assert.ErrorContains(t, err, "migrate up failed")
		assert.True(t, fake.closed)
	})

	t.Run("status failure", func(t *testing.T) {
		withFakeMigrator(t, &fakeMigrator{statusErr: errors.New("boom")})
		err := run(context.Background(), []string{"-dsn=x"}, noEnv, io.Discard, io.Discard)
		assert.ErrorContains(t, err, "migration status failed")
	})
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.NotZero(t, exitErr.ExitCode())
}

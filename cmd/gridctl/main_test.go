package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/storage"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Store.Type)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
store:
  type: badger
  badger:
    in_memory: true
    open_timeout: 2s
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Store.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)

	opts, err := cfg.badgerOptions()
	require.NoError(t, err)
	assert.True(t, opts.InMemory)
	assert.Equal(t, 2*time.Second, opts.OpenTimeout)
	assert.Equal(t, 2*time.Second, cfg.openTimeout())
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad store type", yaml: "store:\n  type: cloud\n"},
		{name: "bad log level", yaml: "logging:\n  level: loud\n"},
		{name: "bad log format", yaml: "logging:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gridctl.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := loadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// writeTestDataset commits a small tree into a local store directory.
func writeTestDataset(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	ds, err := gridgo.Create(ctx, store)
	require.NoError(t, err)

	root := ds.Root()
	require.NoError(t, root.PutText(ctx, gridgo.Global, "title", "test grid"))

	timeDim, err := root.AddDimension("time", 0)
	require.NoError(t, err)
	latDim, err := root.AddDimension("lat", 180)
	require.NoError(t, err)
	sst, err := root.AddVariable("sst", dtype.Float, []*gridgo.Dimension{timeDim, latDim})
	require.NoError(t, err)
	require.NoError(t, root.PutText(ctx, sst.Sel(), "units", "degC"))
	require.NoError(t, root.PutInt64s(ctx, sst.Sel(), "valid_range", -5, 45))

	require.NoError(t, ds.Close(ctx))
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	writeTestDataset(t, dir)

	ctx := context.Background()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	ds, err := gridgo.Open(ctx, store, gridgo.ReadOnly())
	require.NoError(t, err)
	defer ds.Close(ctx)

	var buf bytes.Buffer
	require.NoError(t, dump(ctx, &buf, ds))
	out := buf.String()

	assert.Contains(t, out, "time = UNLIMITED")
	assert.Contains(t, out, "lat = 180 ;")
	assert.Contains(t, out, "float sst(time, lat)")
	assert.Contains(t, out, `sst:units = "degC"`)
	assert.Contains(t, out, "sst:valid_range = -5ll, 45ll")
	assert.Contains(t, out, `:title = "test grid"`)
}

func TestRunVerify(t *testing.T) {
	dir := t.TempDir()
	writeTestDataset(t, dir)

	assert.Equal(t, exitOK, run([]string{"verify", dir}))
}

func TestRunUsage(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
	assert.Equal(t, exitUsage, run([]string{"frobnicate", "x"}))
	assert.Equal(t, exitUsage, run([]string{"dump"}))
}

func TestRunVerifyMissingDataset(t *testing.T) {
	assert.Equal(t, exitFailed, run([]string{"verify", t.TempDir()}))
}

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolve-cli/internal/config"
	"github.com/sells-group/resolve-cli/internal/store"
)

func TestInitSink_Memory(t *testing.T) {
	sink, err := initSink(context.Background(), &config.Config{
		Store: config.StoreConfig{Driver: "memory"},
	})
	require.NoError(t, err)
	defer sink.Close()

	_, ok := sink.(*store.MemorySink)
	assert.True(t, ok)
}

func TestInitSink_SQLite(t *testing.T) {
	sink, err := initSink(context.Background(), &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "resolve.db"),
		},
	})
	require.NoError(t, err)
	defer sink.Close()

	_, ok := sink.(*store.SQLiteSink)
	assert.True(t, ok)
}

func TestInitSink_UnsupportedDriver(t *testing.T) {
	_, err := initSink(context.Background(), &config.Config{
		Store: config.StoreConfig{Driver: "mysql"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitReader_MemorySupportsReadBack(t *testing.T) {
	reader, sink, err := initReader(context.Background(), &config.Config{
		Store: config.StoreConfig{Driver: "memory"},
	})
	require.NoError(t, err)
	defer sink.Close()

	entities, err := reader.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entities)
}

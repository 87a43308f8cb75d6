package logging

import (
	"os"
	"path/filepath"
	"testing"

	"engagehub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesRollingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := New(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		EnableFile: true,
		FilePath:   path,
	})
	require.NoError(t, err)

	logger.Info("Badge awarded")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Badge awarded")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "console"})
	assert.Error(t, err)
}

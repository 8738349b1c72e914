package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenSourceLoadsMountedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("secret-token"), 0o600))

	source := NewFileTokenSource(path)
	require.NoError(t, source.Start(context.Background()))
	defer source.Stop()

	assert.Equal(t, "secret-token", source.Token())
}

func TestFileTokenSourceMissingFileIsNotFatal(t *testing.T) {
	source := NewFileTokenSource(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, source.Start(context.Background()))
	defer source.Stop()

	assert.Empty(t, source.Token())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: dev
db_user: lab
db_name: cmt
db_port: 3307
jwt_secret: s3cret
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "localhost:4001", cfg.Address)
	assert.Equal(t, "lab:@tcp(localhost:3307)/cmt?parseTime=true&clientFoundRows=true", cfg.DSN())
}

func TestLoad_MissingRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: dev\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/lab.yaml")
	assert.Equal(t, "/etc/lab.yaml", Path())
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, defaultConfigPath, Path())
}

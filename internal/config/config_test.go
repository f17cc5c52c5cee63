package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvironment(t *testing.T) {
	cfg, err := FromEnvironment(map[string]string{
		"OASGEN_OUT":          " build ",
		"OASGEN_LOG_LEVEL":    "debug",
		"OASGEN_ARTIFACTS":    "schemas, tables,",
		"OASGEN_ON_DUPLICATE": "reject",
		"OASGEN_VALIDATE":     "false",
		"USER":                "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "build", cfg.Out)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"schemas", "tables"}, cfg.Artifacts)
	assert.Equal(t, "reject", cfg.OnDuplicate)
	assert.Empty(t, cfg.User)
	assert.Equal(t, "alice", cfg.SystemUser)
	require.NotNil(t, cfg.Validate)
	assert.False(t, *cfg.Validate)
}

func TestFromEnvironment_Defaults(t *testing.T) {
	cfg, err := FromEnvironment(map[string]string{"OASGEN_USER": "bob", "USER": "alice"})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bob", cfg.User)
	assert.Equal(t, "alice", cfg.SystemUser)
	assert.Nil(t, cfg.Validate)
	assert.Empty(t, cfg.Artifacts)
}

func TestFromEnvironment_BadBool(t *testing.T) {
	_, err := FromEnvironment(map[string]string{"OASGEN_VALIDATE": "maybe"})
	require.Error(t, err)
}

func TestParseArtifacts(t *testing.T) {
	all, err := ParseArtifacts(nil)
	require.NoError(t, err)
	assert.Equal(t, AllArtifacts, all)

	got, err := ParseArtifacts([]string{"tables", "Schemas", "tables"})
	require.NoError(t, err)
	assert.Equal(t, []Artifact{ArtifactSchemas, ArtifactTables}, got)
	assert.True(t, Selected(got, ArtifactTables))
	assert.False(t, Selected(got, ArtifactFakeData))

	_, err = ParseArtifacts([]string{"binaries"})
	require.ErrorContains(t, err, "unknown artifact")
}

package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	t.Setenv(levelEnv, "")
	require.Equal(t, zerolog.InfoLevel, New("svc").GetLevel())
}

func TestNew_LevelFromEnv(t *testing.T) {
	t.Setenv(levelEnv, "debug")
	require.Equal(t, zerolog.DebugLevel, New("svc").GetLevel())
}

func TestNew_UnparseableLevelFallsBackToInfo(t *testing.T) {
	t.Setenv(levelEnv, "chatty")
	require.Equal(t, zerolog.InfoLevel, New("svc").GetLevel())
}

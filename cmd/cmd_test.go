package cmd

import (
	"bytes"
	"strings"
	"testing"

	"draw_queue/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev\n", execute(t, "version"))
}

func TestTokenIsAccepted(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")
	t.Setenv("JWT_ACCESS_SECRET", "cli-secret")

	tok := strings.TrimSpace(execute(t, "token", "--user", "u-77"))

	userID, err := auth.NewAuthenticator("cli-secret").ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-77", userID)
}

func TestReapOnceWithMemoryStore(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")
	t.Setenv("JWT_ACCESS_SECRET", "cli-secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	out := execute(t, "reap", "--once")
	assert.Contains(t, out, "products=0")
}

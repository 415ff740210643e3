package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestSimulate_Default(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, simulate(context.Background(), &out, discardLogger(), simulation{
		response: defaultSimulatedResponse,
	}))

	got := out.String()
	assert.Contains(t, got, "opened:   http://public.msl.re/simple-digital-config.html")
	assert.Contains(t, got, `sent:     PERSIST_KEY_DATE="true"`)
	assert.Contains(t, got, "delivery: acknowledged")
	assert.Contains(t, got, "display:  show_date=true")
}

func TestSimulate_DateOff(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, simulate(context.Background(), &out, discardLogger(), simulation{
		response: "%7B%22date%22%3Afalse%7D",
	}))

	assert.Contains(t, out.String(), `sent:     PERSIST_KEY_DATE="false"`)
	assert.Contains(t, out.String(), "display:  show_date=false")
}

func TestSimulate_Malformed(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, simulate(context.Background(), &out, discardLogger(), simulation{
		response: "CANCELLED",
	}))

	got := out.String()
	assert.Regexp(t, `webviewclosed\s+error: webviewclosed: `, got)
	assert.NotContains(t, got, "sent:")
	assert.Contains(t, got, "display:  show_date=true", "watch keeps its defaults")
}

func TestSimulate_HostFailures(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, simulate(context.Background(), &out, discardLogger(), simulation{
		response: defaultSimulatedResponse,
		openErr:  "no webview",
		sendErr:  "APP_MSG_NOT_CONNECTED",
	}))

	got := out.String()
	assert.NotContains(t, got, "opened:")
	assert.Contains(t, got, "showConfiguration  ok", "open failures are logged, not returned")
	assert.Contains(t, got, "delivery: failed (APP_MSG_NOT_CONNECTED)")
}

func TestHashToken(t *testing.T) {
	hash, err := hashToken("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	_, err = hashToken("", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	line, err := firstLine(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", line)
}

func TestRunUnknownCommand(t *testing.T) {
	assert.EqualError(t, run([]string{"frobnicate"}), "unknown command: frobnicate")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SIMPLEDIGITAL_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("SIMPLEDIGITAL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SIMPLEDIGITAL_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SIMPLEDIGITAL_TEST_DOTENV"))
}

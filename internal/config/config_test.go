package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"RULEBOOK_CONFIG", "RULEBOOK_API_BASE_URL", "RULEBOOK_API_TIMEOUT",
		"RULEBOOK_AUTH_USERNAME", "RULEBOOK_AUTH_PASSWORD", "RULEBOOK_LOG_DEBUG",
		"RULEBOOK_STUB_CONFIG", "RULEBOOK_STUB_USERS", "RULEBOOK_STUB_ADDR",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return home
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.API.Timeout)
	assert.True(t, cfg.UI.AltScreen)
	assert.False(t, cfg.Log.Debug)
	assert.Equal(t, filepath.Join(home, ".local", "state", "rulebook", "transcript.json"), cfg.Transcript.Path)
	assert.Empty(t, cfg.Auth.Username)
}

func TestLoadFromDefaultConfigFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "rulebook", "config.toml"), `
[api]
base_url = "http://rules.internal:9000/"
timeout = "45s"

[auth]
username = "testuser"
`)

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://rules.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "testuser", cfg.Auth.Username)
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "custom.toml"), `
[api]
base_url = "http://from-file:8000"
`)
	t.Setenv("RULEBOOK_API_BASE_URL", "http://from-env:8000")
	t.Setenv("RULEBOOK_LOG_DEBUG", "true")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.API.BaseURL)
	assert.True(t, cfg.Log.Debug)
}

func TestEnvFileIsLoaded(t *testing.T) {
	isolate(t)
	envFile := writeFile(t, filepath.Join(t.TempDir(), ".env.local"), "RULEBOOK_AUTH_USERNAME=envuser\n")
	t.Cleanup(func() { _ = os.Unsetenv("RULEBOOK_AUTH_USERNAME") })

	cfg, err := Load(Options{EnvFiles: []string{envFile, filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Auth.Username)
}

func TestInvalidBaseURLIsRejected(t *testing.T) {
	isolate(t)
	t.Setenv("RULEBOOK_API_BASE_URL", "not a url")

	_, err := Load(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL")
}

func TestMissingExplicitConfigFileFails(t *testing.T) {
	isolate(t)

	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.toml")})
	assert.Error(t, err)
}

func TestLoadStubDefaults(t *testing.T) {
	isolate(t)

	stub, err := LoadStub(Options{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8000", stub.Addr)
	assert.Equal(t, 30*time.Minute, stub.TokenTTL)

	users, err := stub.Credentials()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"testuser": "testpassword"}, users)
}

func TestStubCredentialsParsing(t *testing.T) {
	cases := []struct {
		name    string
		users   string
		want    map[string]string
		wantErr bool
	}{
		{name: "pairs", users: "alice:a1, bob:b:2", want: map[string]string{"alice": "a1", "bob": "b:2"}},
		{name: "missing password", users: "alice:", wantErr: true},
		{name: "missing colon", users: "alice", wantErr: true},
		{name: "empty", users: " , ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Stub{Users: tc.users}.Credentials()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

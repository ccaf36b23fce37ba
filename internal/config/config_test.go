package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfigDirs(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CONFIG_DIRS", dir)
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {

	t.Run("defaults", func(t *testing.T) {
		isolateConfigDirs(t)

		config, err := Load(viper.New(), "")
		require.NoError(t, err)

		expected := Default()
		assert.Equal(t, expected, config)
		assert.Empty(t, config.File)
	})

	t.Run("default file", func(t *testing.T) {
		dir := isolateConfigDirs(t)
		path := writeFile(t, dir, CONFIG_FILE_RELPATH, "transport: tcp\nrequestTimeout: 5s\n")

		config, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, TCPTransport, config.Transport)
		assert.Equal(t, DEFAULT_TCP_ADDRESS, config.Address)
		assert.Equal(t, 5*time.Second, config.RequestTimeout)
		assert.Equal(t, path, config.File)
	})

	t.Run("JSON file", func(t *testing.T) {
		isolateConfigDirs(t)
		path := writeFile(t, t.TempDir(), "config.json", `{"requestIdStyle": "ulid", "closedIdCacheSize": 10, "logFormat": "console"}`)

		config, err := Load(viper.New(), path)
		require.NoError(t, err)

		assert.Equal(t, "ulid", config.RequestIdStyle)
		assert.Equal(t, 10, config.ClosedIdCacheSize)
		assert.Equal(t, "console", config.LogFormat)
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		isolateConfigDirs(t)
		path := writeFile(t, t.TempDir(), "config.yaml", "requestIdStyle: uuid\nprogressReportDebounce: 1s\n")

		t.Setenv("LSPCORE_REQUEST_ID_STYLE", "ulid")

		config, err := Load(viper.New(), path)
		require.NoError(t, err)

		assert.Equal(t, "ulid", config.RequestIdStyle)
		assert.Equal(t, time.Second, config.ProgressReportDebounce)
	})

	t.Run("flags override environment variables", func(t *testing.T) {
		isolateConfigDirs(t)
		t.Setenv("LSPCORE_TRANSPORT", "tcp")

		flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		flags.String(TRANSPORT_KEY, "stdio", "")
		flags.String(ADDRESS_KEY, "", "")
		require.NoError(t, flags.Parse([]string{"--transport", "websocket", "--address", ":8080"}))

		v := viper.New()
		require.NoError(t, v.BindPFlags(flags))

		config, err := Load(v, "")
		require.NoError(t, err)

		assert.Equal(t, WebsocketTransport, config.Transport)
		assert.Equal(t, ":8080", config.Address)
	})

	t.Run("explicit file that does not exist", func(t *testing.T) {
		isolateConfigDirs(t)

		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown key", func(t *testing.T) {
		isolateConfigDirs(t)
		path := writeFile(t, t.TempDir(), "config.yaml", "transprot: tcp\n")

		_, err := Load(viper.New(), path)
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("invalid values", func(t *testing.T) {
		isolateConfigDirs(t)

		for _, content := range []string{
			"transport: udp\n",
			"protocolVersion: latest\n",
			"requestIdStyle: random\n",
			"logLevel: loud\n",
			"logFormat: xml\n",
			"requestTimeout: -1s\n",
			"rateLimitRequests: -1\n",
			"rateLimitRequests: 10\nrateLimitWindow: 0s\n",
			"hostRateLimitRequests: 10\n",
		} {
			path := writeFile(t, t.TempDir(), "config.yaml", content)
			_, err := Load(viper.New(), path)
			assert.Error(t, err, content)
		}
	})
}

func TestRateLimit(t *testing.T) {
	isolateConfigDirs(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "rateLimitWindow: 2s\nrateLimitRequests: 20\nhostRateLimitRequests: 50\n")

	config, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, config.SessionRateLimit().Duration)
	assert.Equal(t, 20, config.SessionRateLimit().RequestCount)
	assert.Equal(t, 50, config.HostRateLimit().RequestCount)
	assert.True(t, config.HostRateLimit().Enabled())

	assert.False(t, Default().SessionRateLimit().Enabled())
}

func TestYAML(t *testing.T) {
	isolateConfigDirs(t)

	config := Default()
	config.Transport = WebsocketTransport
	config.Address = "localhost:9000"
	config.RequestTimeout = 2 * time.Minute

	content, err := config.YAML()
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "config.yaml", string(content))

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)

	loaded.File = ""
	assert.Equal(t, config, loaded)
}

func TestWriteDefaultFile(t *testing.T) {
	isolateConfigDirs(t)

	path, err := WriteDefaultFile()
	require.NoError(t, err)
	assert.Equal(t, path, DefaultConfigPath())

	config, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, path, config.File)

	config.File = ""
	assert.Equal(t, Default(), config)
}

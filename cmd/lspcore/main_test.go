package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/config"
	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/rs/zerolog"
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

func run(t *testing.T, args ...string) (exitCode int, out string, errOut string) {
	var outW, errW bytes.Buffer
	exitCode = _main(args, bytes.NewReader(nil), &outW, &errW)
	return exitCode, outW.String(), errW.String()
}

func TestVersionCommand(t *testing.T) {
	exitCode, out, _ := run(t, "version")
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, out, "lspcore version dev")
	assert.Contains(t, out, "LSP version: "+lsp.DEFAULT_PROTOCOL_VERSION)
}

func TestMethodsCommand(t *testing.T) {
	t.Run("default version", func(t *testing.T) {
		exitCode, out, _ := run(t, "methods")
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, out, "textDocument/declaration")
		assert.Contains(t, out, "workspace/applyEdit")
		assert.Regexp(t, `workspace/applyEdit\s+request\s+server->client\s+2\.0\.0`, out)
	})

	t.Run("older version", func(t *testing.T) {
		exitCode, out, _ := run(t, "methods", "--protocol-version", "3.13.0")
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, out, "textDocument/hover")
		assert.NotContains(t, out, "textDocument/declaration")
	})

	t.Run("invalid version", func(t *testing.T) {
		exitCode, _, errOut := run(t, "methods", "--protocol-version", "x")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, errOut, "invalid protocol version")
	})
}

func TestConfigCommand(t *testing.T) {
	t.Run("show", func(t *testing.T) {
		isolateConfigDirs(t)
		t.Setenv("LSPCORE_LOG_LEVEL", "debug")

		exitCode, out, _ := run(t, "config", "show")
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, out, "logLevel: debug")
		assert.Contains(t, out, "transport: stdio")
	})

	t.Run("show as JSON with a configuration file", func(t *testing.T) {
		dir := isolateConfigDirs(t)
		path := filepath.Join(dir, "lspcore.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"transport": "tcp"}`), 0o600))

		exitCode, out, errOut := run(t, "config", "show", "--json", "--config", path)
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, errOut, path)

		var values map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &values))
		assert.Equal(t, "tcp", values["transport"])
		assert.Equal(t, config.DEFAULT_TCP_ADDRESS, values["address"])
	})

	t.Run("init", func(t *testing.T) {
		dir := isolateConfigDirs(t)

		exitCode, out, _ := run(t, "config", "init")
		assert.Equal(t, 0, exitCode)

		path := filepath.Join(dir, config.CONFIG_FILE_RELPATH)
		assert.Equal(t, path+"\n", out)
		assert.FileExists(t, path)

		//the existing file is kept.
		require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\n"), 0o600))
		exitCode, _, _ = run(t, "config", "init")
		assert.Equal(t, 0, exitCode)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "logLevel: warn\n", string(content))
	})
}

func TestServeCommand(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		isolateConfigDirs(t)

		exitCode, _, errOut := run(t, "serve", "--transport", "carrier-pigeon")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, errOut, "transport")
	})

	t.Run("stdio", func(t *testing.T) {
		isolateConfigDirs(t)

		serverInR, serverInW := io.Pipe()
		serverOutR, serverOutW := io.Pipe()
		var errW bytes.Buffer

		exitCode := make(chan int, 1)
		go func() {
			exitCode <- _main([]string{"serve", "--log-level", "error"}, serverInR, serverOutW, &errW)
		}()

		clientRegistry, clientMethods, err := lsp.NewStandardRegistry("")
		require.NoError(t, err)

		clientRpc, err := jsonrpc.NewServer(context.Background(), jsonrpc.ServerConfig{
			Registry: clientRegistry,
			Logger:   zerolog.Nop(),
		})
		require.NoError(t, err)

		created := make(chan *jsonrpc.Session, 1)
		go clientRpc.MsgConnComeIn(jsonrpc.NewFramedConn(lsp.NewStdio(serverOutR, serverInW)), func(session *jsonrpc.Session) {
			created <- session
		})
		client := <-created
		defer client.Close()

		var params defines.InitializeParams
		require.NoError(t, json.Unmarshal([]byte(`{"processId":null,"rootUri":null,"capabilities":{"textDocument":{"hover":{}}}}`), &params))

		result, err := jsonrpc.SendRequest(context.Background(), client, clientMethods.Initialize, params, jsonrpc.CallOptions{})
		require.NoError(t, err)
		require.NotNil(t, result.ServerInfo)
		assert.Equal(t, COMMAND_NAME, result.ServerInfo.Name)
		assert.Equal(t, version, result.ServerInfo.Version)

		_, err = jsonrpc.SendRequest(context.Background(), client, clientMethods.Shutdown, defines.NoParams{}, jsonrpc.CallOptions{})
		require.NoError(t, err)
		require.NoError(t, jsonrpc.SendNotification(client, clientMethods.Exit, defines.NoParams{}))

		select {
		case code := <-exitCode:
			assert.Equal(t, 0, code)
		case <-time.After(5 * time.Second):
			assert.FailNow(t, "the server did not exit")
		}
	})
}

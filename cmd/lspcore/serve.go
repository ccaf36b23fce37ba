package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/inoxlang/lspcore/internal/config"
	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/logs"
	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/inoxlang/lspcore/internal/metrics"
	"github.com/inoxlang/lspcore/internal/wordserver"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const CONFIG_FLAG = "config"

func newServeCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the language server",
		Long: `Start the language server on stdio (default), on a TCP address or on a websocket address.
Settings are read from the flags, then from the LSPCORE_* environment variables
(e.g. LSPCORE_LOG_LEVEL), then from the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := cmd.Flags().GetString(CONFIG_FLAG)
			if err != nil {
				return err
			}

			serverConfig, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), serverConfig, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	defaults := config.Default()

	flags := cmd.Flags()
	flags.String(config.TRANSPORT_KEY, string(defaults.Transport), "transport: stdio, tcp or websocket")
	flags.String(config.ADDRESS_KEY, "", fmt.Sprintf("listening address (default %s for tcp, %s for websocket)", config.DEFAULT_TCP_ADDRESS, config.DEFAULT_WEBSOCKET_ADDRESS))
	flags.String(config.PROTOCOL_VERSION_KEY, defaults.ProtocolVersion, "LSP version, the methods introduced later are not available")
	flags.String(config.REQUEST_ID_STYLE_KEY, defaults.RequestIdStyle, "id style of the requests sent to the client: counter, uuid or ulid")
	flags.Duration(config.REQUEST_TIMEOUT_KEY, defaults.RequestTimeout, "timeout of the requests sent to the client, 0 disables it")
	flags.Int(config.CLOSED_ID_CACHE_SIZE_KEY, defaults.ClosedIdCacheSize, "number of recently closed request ids remembered per session")
	flags.Duration(config.PROGRESS_REPORT_DEBOUNCE_KEY, defaults.ProgressReportDebounce, "minimum delay between two work done reports")
	flags.String(config.LOG_LEVEL_KEY, defaults.LogLevel, "log level")
	flags.String(config.LOG_FILE_KEY, "", "log file (default stderr)")
	flags.String(config.LOG_FORMAT_KEY, defaults.LogFormat, "log format: json or console")
	flags.String(config.METRICS_ADDRESS_KEY, "", "address of the Prometheus metrics endpoint, disabled if empty")
	flags.Int(config.MAX_WEBSOCKET_CONNECTIONS_KEY, defaults.MaxWebsocketConnections, "maximum number of websocket connections per IP")
	flags.Duration(config.RATE_LIMIT_WINDOW_KEY, defaults.RateLimitWindow, "duration of the request rate limiting window")
	flags.Int(config.RATE_LIMIT_REQUESTS_KEY, defaults.RateLimitRequests, "maximum number of requests per session during the rate limiting window, 0 disables the limit")
	flags.Int(config.HOST_RATE_LIMIT_REQUESTS_KEY, defaults.HostRateLimitRequests, "maximum number of requests shared by the sessions of a remote host during the rate limiting window")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	return cmd
}

func serve(ctx context.Context, serverConfig config.ServerConfig, inR io.Reader, outW, errW io.Writer) error {
	logOutput := errW
	if serverConfig.LogFile != "" {
		f, err := os.OpenFile(serverConfig.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open the log file: %w", err)
		}
		defer f.Close()
		logOutput = f
	}

	logger, err := logs.New(logs.Config{
		Level:  serverConfig.LogLevel,
		Format: serverConfig.LogFormat,
		Output: logOutput,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("transport", string(serverConfig.Transport)).
		Str("protocolVersion", serverConfig.ProtocolVersion).
		Str("configFile", serverConfig.File).
		Msg("start " + COMMAND_NAME)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverMetrics := metrics.New()

	ws, err := wordserver.New(ctx, lsp.ServerConfig{
		Name:                   COMMAND_NAME,
		Version:                version,
		ProtocolVersion:        serverConfig.ProtocolVersion,
		Logger:                 logger,
		Observer:               serverMetrics,
		IdStyle:                jsonrpc.IdStyle(serverConfig.RequestIdStyle),
		RequestTimeout:         serverConfig.RequestTimeout,
		ClosedIdCacheSize:      serverConfig.ClosedIdCacheSize,
		ProgressReportDebounce: serverConfig.ProgressReportDebounce,
		MaxWebsocketPerIp:      serverConfig.MaxWebsocketConnections,
		SessionRateLimit:       serverConfig.SessionRateLimit(),
		HostRateLimit:          serverConfig.HostRateLimit(),
		OnSessionClosed: func(session *lsp.Session) {
			logger := session.Logger()
			logger.Info().Msg("session closed")
		},
	})
	if err != nil {
		return err
	}
	defer ws.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	if serverConfig.MetricsAddress != "" {
		group.Go(func() error {
			logger.Info().Msgf("serve metrics on %s", serverConfig.MetricsAddress)
			return serverMetrics.Serve(groupCtx, serverConfig.MetricsAddress)
		})
	}

	group.Go(func() error {
		//the other goroutines of the group stop once the server stops.
		defer cancel()

		switch serverConfig.Transport {
		case config.TCPTransport:
			return ws.Server().ServeTCP(groupCtx, serverConfig.Address)
		case config.WebsocketTransport:
			return ws.Server().ServeWebsocket(groupCtx, serverConfig.Address)
		default:
			return serveStdio(groupCtx, ws.Server(), inR, outW, logger)
		}
	})

	return group.Wait()
}

// serveStdio returns when the client closes the session or when ctx is done.
func serveStdio(ctx context.Context, server *lsp.Server, inR io.Reader, outW io.Writer, logger zerolog.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ServeStdio(inR, outW)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Info().Msg("stop serving on stdio")
		server.Close()
	}
	return nil
}

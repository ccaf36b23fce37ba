package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/inoxlang/lspcore/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	APP_NAME            = "lspcore"
	CONFIG_FILE_RELPATH = APP_NAME + "/config.yaml"
	ENV_PREFIX          = "LSPCORE"

	DEFAULT_TCP_ADDRESS       = "localhost:7998"
	DEFAULT_WEBSOCKET_ADDRESS = "localhost:7999"
)

type Transport string

const (
	StdioTransport     Transport = "stdio"
	TCPTransport       Transport = "tcp"
	WebsocketTransport Transport = "websocket"
)

// Keys of the configuration, they are also the names of the flags of the serve command.
const (
	TRANSPORT_KEY                 = "transport"
	ADDRESS_KEY                   = "address"
	PROTOCOL_VERSION_KEY          = "protocol-version"
	REQUEST_ID_STYLE_KEY          = "request-id-style"
	REQUEST_TIMEOUT_KEY           = "request-timeout"
	CLOSED_ID_CACHE_SIZE_KEY      = "closed-id-cache-size"
	PROGRESS_REPORT_DEBOUNCE_KEY  = "progress-report-debounce"
	LOG_LEVEL_KEY                 = "log-level"
	LOG_FILE_KEY                  = "log-file"
	LOG_FORMAT_KEY                = "log-format"
	METRICS_ADDRESS_KEY           = "metrics-address"
	MAX_WEBSOCKET_CONNECTIONS_KEY = "max-websocket-connections"
	RATE_LIMIT_WINDOW_KEY         = "rate-limit-window"
	RATE_LIMIT_REQUESTS_KEY       = "rate-limit-requests"
	HOST_RATE_LIMIT_REQUESTS_KEY  = "host-rate-limit-requests"
)

// file keys are lower camel case.
var fileKeys = map[string]string{
	"transport":               TRANSPORT_KEY,
	"address":                 ADDRESS_KEY,
	"protocolVersion":         PROTOCOL_VERSION_KEY,
	"requestIdStyle":          REQUEST_ID_STYLE_KEY,
	"requestTimeout":          REQUEST_TIMEOUT_KEY,
	"closedIdCacheSize":       CLOSED_ID_CACHE_SIZE_KEY,
	"progressReportDebounce":  PROGRESS_REPORT_DEBOUNCE_KEY,
	"logLevel":                LOG_LEVEL_KEY,
	"logFile":                 LOG_FILE_KEY,
	"logFormat":               LOG_FORMAT_KEY,
	"metricsAddress":          METRICS_ADDRESS_KEY,
	"maxWebsocketConnections": MAX_WEBSOCKET_CONNECTIONS_KEY,
	"rateLimitWindow":         RATE_LIMIT_WINDOW_KEY,
	"rateLimitRequests":       RATE_LIMIT_REQUESTS_KEY,
	"hostRateLimitRequests":   HOST_RATE_LIMIT_REQUESTS_KEY,
}

var ErrUnknownKey = errors.New("unknown configuration key")

type ServerConfig struct {
	Transport       Transport
	Address         string //ignored in stdio mode
	ProtocolVersion string

	RequestIdStyle         string //counter, uuid or ulid
	RequestTimeout         time.Duration
	ClosedIdCacheSize      int
	ProgressReportDebounce time.Duration

	LogLevel  string
	LogFile   string //empty: stderr
	LogFormat string //json or console

	MetricsAddress          string //empty: no metrics server
	MaxWebsocketConnections int    //per IP

	//maximum number of requests accepted per session (RateLimitRequests) and per remote
	//host (HostRateLimitRequests) during RateLimitWindow, zero disables the limit.
	RateLimitWindow       time.Duration
	RateLimitRequests     int
	HostRateLimitRequests int

	//path of the configuration file that was loaded, empty if none.
	File string
}

// fileConfig is the representation of ServerConfig in configuration files.
type fileConfig struct {
	Transport               Transport `json:"transport" yaml:"transport"`
	Address                 string    `json:"address,omitempty" yaml:"address,omitempty"`
	ProtocolVersion         string    `json:"protocolVersion" yaml:"protocolVersion"`
	RequestIdStyle          string    `json:"requestIdStyle" yaml:"requestIdStyle"`
	RequestTimeout          string    `json:"requestTimeout" yaml:"requestTimeout"`
	ClosedIdCacheSize       int       `json:"closedIdCacheSize" yaml:"closedIdCacheSize"`
	ProgressReportDebounce  string    `json:"progressReportDebounce" yaml:"progressReportDebounce"`
	LogLevel                string    `json:"logLevel" yaml:"logLevel"`
	LogFile                 string    `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	LogFormat               string    `json:"logFormat" yaml:"logFormat"`
	MetricsAddress          string    `json:"metricsAddress,omitempty" yaml:"metricsAddress,omitempty"`
	MaxWebsocketConnections int       `json:"maxWebsocketConnections" yaml:"maxWebsocketConnections"`
	RateLimitWindow         string    `json:"rateLimitWindow" yaml:"rateLimitWindow"`
	RateLimitRequests       int       `json:"rateLimitRequests" yaml:"rateLimitRequests"`
	HostRateLimitRequests   int       `json:"hostRateLimitRequests" yaml:"hostRateLimitRequests"`
}

func Default() ServerConfig {
	return ServerConfig{
		Transport:               StdioTransport,
		ProtocolVersion:         "3.17.0",
		RequestIdStyle:          "counter",
		RequestTimeout:          30 * time.Second,
		ClosedIdCacheSize:       256,
		ProgressReportDebounce:  100 * time.Millisecond,
		LogLevel:                zerolog.LevelInfoValue,
		LogFormat:               "json",
		MaxWebsocketConnections: 3,
		RateLimitWindow:         time.Second,
	}
}

// SetDefaults sets the default values in v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(TRANSPORT_KEY, string(d.Transport))
	v.SetDefault(ADDRESS_KEY, "")
	v.SetDefault(PROTOCOL_VERSION_KEY, d.ProtocolVersion)
	v.SetDefault(REQUEST_ID_STYLE_KEY, d.RequestIdStyle)
	v.SetDefault(REQUEST_TIMEOUT_KEY, d.RequestTimeout)
	v.SetDefault(CLOSED_ID_CACHE_SIZE_KEY, d.ClosedIdCacheSize)
	v.SetDefault(PROGRESS_REPORT_DEBOUNCE_KEY, d.ProgressReportDebounce)
	v.SetDefault(LOG_LEVEL_KEY, d.LogLevel)
	v.SetDefault(LOG_FILE_KEY, "")
	v.SetDefault(LOG_FORMAT_KEY, d.LogFormat)
	v.SetDefault(METRICS_ADDRESS_KEY, "")
	v.SetDefault(MAX_WEBSOCKET_CONNECTIONS_KEY, d.MaxWebsocketConnections)
	v.SetDefault(RATE_LIMIT_WINDOW_KEY, d.RateLimitWindow)
	v.SetDefault(RATE_LIMIT_REQUESTS_KEY, d.RateLimitRequests)
	v.SetDefault(HOST_RATE_LIMIT_REQUESTS_KEY, d.HostRateLimitRequests)
}

// DefaultConfigPath searches for the configuration file in the XDG config directories,
// it returns an empty path if there is none.
func DefaultConfigPath() string {
	path, err := xdg.SearchConfigFile(CONFIG_FILE_RELPATH)
	if err != nil {
		return ""
	}
	return path
}

// Load reads the configuration with the following precedence: flags bound to v, LSPCORE_*
// environment variables, the file at path (or the default file if path is empty), defaults.
func Load(v *viper.Viper, path string) (ServerConfig, error) {
	SetDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	if path != "" {
		values, err := ReadFile(path)
		switch {
		case err == nil:
			if err := v.MergeConfigMap(values); err != nil {
				return ServerConfig{}, fmt.Errorf("failed to merge configuration file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			path = ""
		default:
			return ServerConfig{}, err
		}
	}

	config := ServerConfig{
		Transport:               Transport(v.GetString(TRANSPORT_KEY)),
		Address:                 v.GetString(ADDRESS_KEY),
		ProtocolVersion:         v.GetString(PROTOCOL_VERSION_KEY),
		RequestIdStyle:          v.GetString(REQUEST_ID_STYLE_KEY),
		RequestTimeout:          v.GetDuration(REQUEST_TIMEOUT_KEY),
		ClosedIdCacheSize:       v.GetInt(CLOSED_ID_CACHE_SIZE_KEY),
		ProgressReportDebounce:  v.GetDuration(PROGRESS_REPORT_DEBOUNCE_KEY),
		LogLevel:                v.GetString(LOG_LEVEL_KEY),
		LogFile:                 v.GetString(LOG_FILE_KEY),
		LogFormat:               v.GetString(LOG_FORMAT_KEY),
		MetricsAddress:          v.GetString(METRICS_ADDRESS_KEY),
		MaxWebsocketConnections: v.GetInt(MAX_WEBSOCKET_CONNECTIONS_KEY),
		RateLimitWindow:         v.GetDuration(RATE_LIMIT_WINDOW_KEY),
		RateLimitRequests:       v.GetInt(RATE_LIMIT_REQUESTS_KEY),
		HostRateLimitRequests:   v.GetInt(HOST_RATE_LIMIT_REQUESTS_KEY),
		File:                    path,
	}

	if config.Address == "" {
		switch config.Transport {
		case TCPTransport:
			config.Address = DEFAULT_TCP_ADDRESS
		case WebsocketTransport:
			config.Address = DEFAULT_WEBSOCKET_ADDRESS
		}
	}

	if err := config.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return config, nil
}

// ReadFile reads a JSON (.json) or YAML configuration file and returns its values by key.
func ReadFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(content, &raw)
	} else {
		err = yaml.Unmarshal(content, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration file %s: %w", path, err)
	}

	values := make(map[string]any, len(raw))
	for fileKey, value := range raw {
		key, ok := fileKeys[fileKey]
		if !ok {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownKey, fileKey, path)
		}
		values[key] = value
	}
	return values, nil
}

func (c ServerConfig) Validate() error {
	switch c.Transport {
	case StdioTransport, TCPTransport, WebsocketTransport:
	default:
		return fmt.Errorf("invalid transport %q: expected stdio, tcp or websocket", c.Transport)
	}

	if c.Transport != StdioTransport && c.Address == "" {
		return fmt.Errorf("an address is required by the %s transport", c.Transport)
	}

	if _, err := semver.NewVersion(c.ProtocolVersion); err != nil {
		return fmt.Errorf("invalid protocol version %q: %w", c.ProtocolVersion, err)
	}

	switch c.RequestIdStyle {
	case "counter", "uuid", "ulid":
	default:
		return fmt.Errorf("invalid request id style %q: expected counter, uuid or ulid", c.RequestIdStyle)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout")
	}
	if c.ProgressReportDebounce < 0 {
		return fmt.Errorf("negative progress report debounce")
	}
	if c.ClosedIdCacheSize < 0 {
		return fmt.Errorf("negative closed id cache size")
	}
	if c.RateLimitRequests < 0 || c.HostRateLimitRequests < 0 {
		return fmt.Errorf("negative rate limit")
	}
	if (c.RateLimitRequests > 0 || c.HostRateLimitRequests > 0) && c.RateLimitWindow <= 0 {
		return fmt.Errorf("the rate limit window should be positive")
	}
	if c.HostRateLimitRequests > 0 && c.RateLimitRequests == 0 {
		return fmt.Errorf("the host rate limit requires a session rate limit")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q: expected json or console", c.LogFormat)
	}
	return nil
}

func (c ServerConfig) toFile() fileConfig {
	return fileConfig{
		Transport:               c.Transport,
		Address:                 c.Address,
		ProtocolVersion:         c.ProtocolVersion,
		RequestIdStyle:          c.RequestIdStyle,
		RequestTimeout:          c.RequestTimeout.String(),
		ClosedIdCacheSize:       c.ClosedIdCacheSize,
		ProgressReportDebounce:  c.ProgressReportDebounce.String(),
		LogLevel:                c.LogLevel,
		LogFile:                 c.LogFile,
		LogFormat:               c.LogFormat,
		MetricsAddress:          c.MetricsAddress,
		MaxWebsocketConnections: c.MaxWebsocketConnections,
		RateLimitWindow:         c.RateLimitWindow.String(),
		RateLimitRequests:       c.RateLimitRequests,
		HostRateLimitRequests:   c.HostRateLimitRequests,
	}
}

// SessionRateLimit returns the window parameters of the session rate limit.
func (c ServerConfig) SessionRateLimit() ratelimit.WindowParameters {
	return ratelimit.WindowParameters{Duration: c.RateLimitWindow, RequestCount: c.RateLimitRequests}
}

// HostRateLimit returns the window parameters of the rate limit shared by the sessions of a host.
func (c ServerConfig) HostRateLimit() ratelimit.WindowParameters {
	return ratelimit.WindowParameters{Duration: c.RateLimitWindow, RequestCount: c.HostRateLimitRequests}
}

// YAML returns the configuration in the format of configuration files.
func (c ServerConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c.toFile())
}

func (c ServerConfig) JSON() ([]byte, error) {
	return json.MarshalIndent(c.toFile(), "", "  ")
}

// WriteDefaultFile writes the default configuration to the XDG config directory
// if no file exists yet, it returns the path of the file.
func WriteDefaultFile() (string, error) {
	if path := DefaultConfigPath(); path != "" {
		return path, nil
	}

	path, err := xdg.ConfigFile(CONFIG_FILE_RELPATH)
	if err != nil {
		return "", err
	}

	content, err := Default().YAML()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

package serv

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/vitals-run/vitals/internal/util"
)

// Config struct holds the Vitals service config values
type Config struct {
	Serv `mapstructure:",squash"`

	hostPort string
	cpath    string
	vi       *viper.Viper
}

// Serv struct contains config values used by the Vitals service
type Serv struct {
	// AppName is the name of your application used in log and debug messages
	AppName string `mapstructure:"app_name"`

	// Env is the name of the environment the service runs in. Set from the
	// GO_ENV environment variable
	Env string

	// Production when set runs the service with production level defaults.
	// Config reloading is disabled
	Production bool

	// LogLevel can be debug, info, warn or error
	LogLevel string `mapstructure:"log_level"`

	// LogFormat can be json or simple
	LogFormat string `mapstructure:"log_format"`

	// HostPort to run the service on. Example localhost:8080
	HostPort string `mapstructure:"host_port"`

	// Host to run the service on
	Host string

	// Port to run the service on
	Port string

	// HTTPGZip enables HTTP compression
	HTTPGZip bool `mapstructure:"http_compress"`

	// EnableTracing enables OpenTelemetry request tracing
	EnableTracing bool `mapstructure:"enable_tracing"`

	// WatchAndReload enables reloading the service on config changes
	WatchAndReload bool `mapstructure:"reload_on_config_change"`

	// AllowedOrigins sets the HTTP CORS Access-Control-Allow-Origin header
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// AllowedHeaders sets the HTTP CORS Access-Control-Allow-Headers header
	AllowedHeaders []string `mapstructure:"cors_allowed_headers"`

	// DebugCORS enables debug logs for cors
	DebugCORS bool `mapstructure:"cors_debug"`

	// CacheControl sets the HTTP Cache-Control header on the index route
	CacheControl string `mapstructure:"cache_control"`

	// DB struct contains db config
	DB struct {
		Type            string
		Host            string
		Port            uint16
		DBName          string
		User            string
		Password        string
		Schema          string
		ConnString      string        `mapstructure:"connection_string"`
		PoolSize        int           `mapstructure:"pool_size"`
		MaxConnections  int           `mapstructure:"max_connections"`
		MaxConnIdleTime time.Duration `mapstructure:"max_connection_idle_time"`
		MaxConnLifeTime time.Duration `mapstructure:"max_connection_life_time"`
		PingTimeout     time.Duration `mapstructure:"ping_timeout"`
		EnableTLS       bool          `mapstructure:"enable_tls"`
		ServerName      string        `mapstructure:"server_name"`
		ServerCert      string        `mapstructure:"server_cert"`
		ClientCert      string        `mapstructure:"client_cert"`
		ClientKey       string        `mapstructure:"client_key"`
	} `mapstructure:"database"`

	RateLimiter struct {
		Rate     float64
		Bucket   int
		IPHeader string `mapstructure:"ip_header"`
	} `mapstructure:"rate_limiter"`
}

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable. This is the best way to create a new Vitals config.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesystem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cpath := path.Dir(configFile)
	cfile := path.Base(configFile)

	if ext := filepath.Ext(cfile); ext != "" {
		cfile = strings.TrimSuffix(cfile, ext)
	}
	vi := newViper(cpath, cfile)

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		// a missing config file is not fatal, the service can run on
		// defaults and environment variables alone
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if inherits := vi.GetString("inherits"); inherits != "" {
		vi = newViper(cpath, inherits)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if vi.IsSet("inherits") {
			return nil, fmt.Errorf("inherited config (%s) cannot itself inherit (%s)",
				inherits,
				vi.GetString("inherits"))
		}

		vi.SetConfigName(cfile)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	// fold matching environment vars into the config
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "VT_") {
			continue
		}
		v := strings.SplitN(e, "=", 2)
		util.SetKeyValue(vi, v[0], v[1])
	}

	c := &Config{vi: vi, cpath: cpath}

	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := viper.New()

	vi.SetEnvPrefix("VT")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	if ext := filepath.Ext(configFile); ext != "" {
		configFile = strings.TrimSuffix(configFile, ext)
	}

	vi.AddConfigPath(configPath)
	vi.SetConfigName(configFile)
	vi.AddConfigPath("./config")

	vi.SetDefault("host_port", "0.0.0.0:8080")
	vi.SetDefault("host", "")
	vi.SetDefault("port", "")

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "simple")

	vi.SetDefault("database.type", "mysql")
	vi.SetDefault("database.host", "localhost")
	vi.SetDefault("database.port", 3306)
	vi.SetDefault("database.user", "root")
	vi.SetDefault("database.password", "")
	vi.SetDefault("database.ping_timeout", 5*time.Second)

	vi.SetDefault("env", "development")

	vi.BindEnv("env", "GO_ENV") //nolint:errcheck
	vi.BindEnv("host", "HOST")  //nolint:errcheck
	vi.BindEnv("port", "PORT")  //nolint:errcheck

	return vi
}

// GetConfigName returns the name of the config file for the environment
// set in GO_ENV. Example: prod
func GetConfigName() string {
	if os.Getenv("GO_ENV") == "" {
		return "dev"
	}

	ge := strings.ToLower(os.Getenv("GO_ENV"))

	switch {
	case strings.HasPrefix(ge, "pro"):
		return "prod"

	case strings.HasPrefix(ge, "sta"):
		return "stage"

	case strings.HasPrefix(ge, "tes"):
		return "test"
	}

	return "dev"
}

// WriteConfigAs writes the effective config out to a file. The format
// is derived from the file extension.
func (c *Config) WriteConfigAs(fname string) error {
	return c.vi.WriteConfigAs(fname)
}

// RelPath joins a path relative to the config directory. Absolute
// paths are returned as is.
func (c *Config) RelPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return path.Join(c.cpath, p)
}

func (c *Config) rateLimiterEnable() bool {
	return c.RateLimiter.Rate > 0 && c.RateLimiter.Bucket > 0
}

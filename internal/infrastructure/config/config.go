package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends understood by StorageConfig.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "PLAYOUT_"

// Config is the playoutd configuration. Durations are whole seconds unless
// the key says otherwise.
type Config struct {
	Studio    StudioConfig    `yaml:"studio"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Playout   PlayoutConfig   `yaml:"playout"`
	Security  SecurityConfig  `yaml:"security"`
}

// StudioConfig names the studio used when a command does not pick one.
type StudioConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StorageConfig selects where rundown documents live. The SQLite database
// is opened regardless because it holds the job log and migrations.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

type MongoConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	ConnectTimeout int    `yaml:"connect_timeout"`
}

// MQTTConfig configures the studio bridge's broker connection.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the backoff between broker connection attempts.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig configures the HTTP job surface.
type APIConfig struct {
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	AuthEnabled bool             `yaml:"auth_enabled"`
	TLS         TLSConfig        `yaml:"tls"`
	Timeouts    APITimeoutConfig `yaml:"timeouts"`
	CORS        CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

// CORSConfig lists what browser clients may do. Empty lists fall back to
// the server's defaults; empty origins allow any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig configures the timeline event stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig configures job and part timing telemetry. Disabled by default.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level (debug, info, warn, error), format (json,
// text) and output (stdout, stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PlayoutConfig holds engine tuning shared by every studio.
type PlayoutConfig struct {
	// AutonextGuardMS rejects a manual take this close to an impending auto-advance.
	AutonextGuardMS int `yaml:"autonext_guard_ms"`

	// MinimumTakeSpanMS is the minimum time between two takes on one playlist.
	MinimumTakeSpanMS int `yaml:"minimum_take_span_ms"`

	// LookaheadDefaultDistance is used for layers whose search distance is -1 or lower.
	LookaheadDefaultDistance int `yaml:"lookahead_default_distance"`

	// MaxConcurrentJobs bounds jobs running at once across all playlists.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// JobTimeoutSeconds bounds how long a job may wait before dispatch. 0 disables.
	JobTimeoutSeconds int `yaml:"job_timeout_seconds"`
}

func (p PlayoutConfig) AutonextGuard() time.Duration {
	return time.Duration(p.AutonextGuardMS) * time.Millisecond
}

func (p PlayoutConfig) MinimumTakeSpan() time.Duration {
	return time.Duration(p.MinimumTakeSpanMS) * time.Millisecond
}

// JobTimeout is zero when jobs may queue indefinitely.
func (p PlayoutConfig) JobTimeout() time.Duration { return seconds(p.JobTimeoutSeconds) }

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig signs the bearer tokens accepted by the HTTP job surface.
// AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Load builds the configuration from Default, then the YAML file at path,
// then PLAYOUT_* environment variables, and validates the result. Unknown
// YAML keys are rejected so a misspelt timing knob cannot silently fall
// back to its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default is a single-studio setup on a local SQLite file and broker.
func Default() *Config {
	return &Config{
		Studio:  StudioConfig{ID: "studio0", Name: "Studio 0"},
		Storage: StorageConfig{Backend: BackendSQLite},
		Database: DatabaseConfig{
			Path:        "./data/playout.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "playout",
			ConnectTimeout: 10,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "playout-core",
			},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     3010,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Playout: PlayoutConfig{
			AutonextGuardMS:          1000,
			MinimumTakeSpanMS:        1000,
			LookaheadDefaultDistance: 10,
			MaxConcurrentJobs:        16,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{Issuer: "playout-core", AccessTokenTTL: 15},
		},
	}
}

type envVar struct {
	name string // without EnvPrefix
	set  func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func num(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func flag(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		*field(c) = b
		return nil
	}
}

// envVars lists the keys deployments commonly set from the environment:
// secrets, addresses and the switches a container start script flips.
var envVars = []envVar{
	{"STUDIO_ID", str(func(c *Config) *string { return &c.Studio.ID })},
	{"STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"DATABASE_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"MONGO_URI", str(func(c *Config) *string { return &c.Mongo.URI })},
	{"MONGO_DATABASE", str(func(c *Config) *string { return &c.Mongo.Database })},
	{"MQTT_ENABLED", flag(func(c *Config) *bool { return &c.MQTT.Enabled })},
	{"MQTT_HOST", str(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"MQTT_PORT", num(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"MQTT_USERNAME", str(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"MQTT_PASSWORD", str(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"API_PORT", num(func(c *Config) *int { return &c.API.Port })},
	{"API_AUTH_ENABLED", flag(func(c *Config) *bool { return &c.API.AuthEnabled })},
	{"INFLUXDB_ENABLED", flag(func(c *Config) *bool { return &c.InfluxDB.Enabled })},
	{"INFLUXDB_URL", str(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"INFLUXDB_TOKEN", str(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"JWT_SECRET", str(func(c *Config) *string { return &c.Security.JWT.Secret })},
}

// applyEnv overrides cfg from lookup. Empty values are ignored; malformed
// numbers and booleans are errors rather than silently dropped.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, e := range envVars {
		v, ok := lookup(EnvPrefix + e.name)
		if !ok || v == "" {
			continue
		}
		if err := e.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, e.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// minJWTSecretLength keeps HMAC keys out of brute-force range.
const minJWTSecretLength = 32

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if c.Studio.ID == "" {
		add("studio.id is required")
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			add("mongo.uri and mongo.database are required for the mongo backend")
		}
	default:
		add("storage.backend %q must be one of sqlite, mongo, memory", c.Storage.Backend)
	}
	if c.Database.Path == "" {
		add("database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		add("mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		add("mqtt.reconnect.max_delay must not be below initial_delay")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		add("api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		add("api.tls.cert_file and api.tls.key_file are required when api.tls.enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		add("influxdb.url, influxdb.org and influxdb.bucket are required when influxdb.enabled")
	}

	for key, v := range map[string]int{
		"playout.autonext_guard_ms":          c.Playout.AutonextGuardMS,
		"playout.minimum_take_span_ms":       c.Playout.MinimumTakeSpanMS,
		"playout.lookahead_default_distance": c.Playout.LookaheadDefaultDistance,
		"playout.job_timeout_seconds":        c.Playout.JobTimeoutSeconds,
	} {
		if v < 0 {
			add("%s must not be negative", key)
		}
	}
	if c.Playout.MaxConcurrentJobs < 1 {
		add("playout.max_concurrent_jobs must be at least 1")
	}

	if c.API.AuthEnabled {
		switch {
		case c.Security.JWT.Secret == "":
			add("security.jwt.secret is required when api.auth_enabled (set %sJWT_SECRET)", EnvPrefix)
		case len(c.Security.JWT.Secret) < minJWTSecretLength:
			add("security.jwt.secret must be at least %d characters", minJWTSecretLength)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	// Map iteration above is unordered.
	slices.Sort(errs)
	return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
}

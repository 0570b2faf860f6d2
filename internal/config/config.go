// Package config loads the agent's settings. Precedence is lowest to
// highest: built-in defaults, a .env file if one exists, the process
// environment, then an optional YAML file. The merged result is
// validated before anything else starts.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/reliefops/logistics-agent/internal/engine"
	"github.com/reliefops/logistics-agent/internal/monitor"
	"github.com/reliefops/logistics-agent/internal/routing"
)

type Config struct {
	AgentName string `yaml:"agent_name" validate:"required"`
	StateDir  string `yaml:"state_dir" validate:"required"`

	Intervals IntervalsConfig `yaml:"intervals"`
	Engine    EngineConfig    `yaml:"engine"`
	Weights   WeightsConfig   `yaml:"decision_weights"`
	API       APIConfig       `yaml:"api"`

	Inventory EndpointConfig `yaml:"inventory"`
	Transport EndpointConfig `yaml:"transport"`
	Weather   EndpointConfig `yaml:"weather"`

	Notify  NotifyConfig  `yaml:"notify"`
	Queue   QueueConfig   `yaml:"ops_queue"`
	Stream  StreamConfig  `yaml:"stream"`
	Logging LoggingConfig `yaml:"logging"`

	// Distances seeds the static distance table used for source
	// selection when no live geodistance service is wired up.
	Distances []routing.DistanceEntry `yaml:"distances"`
}

// IntervalsConfig spaces the agent's periodic checks, in seconds.
type IntervalsConfig struct {
	MainLoopSec  int `yaml:"main_loop_sec" validate:"min=1"`
	InventorySec int `yaml:"inventory_sec" validate:"min=1"`
	ShipmentSec  int `yaml:"shipment_sec" validate:"min=1"`
	WeatherSec   int `yaml:"weather_sec" validate:"min=1"`
}

// EngineConfig carries the decision thresholds operators actually tune.
type EngineConfig struct {
	RerouteDelayMinutes int     `yaml:"reroute_delay_minutes" validate:"min=0"`
	MinVisibilityMeters float64 `yaml:"min_visibility_meters" validate:"min=0"`
	MaxWindSpeedKmh     float64 `yaml:"max_wind_speed_kmh" validate:"min=0"`
}

// WeightsConfig holds the decision factor weights. They are loaded and
// validated for forward compatibility but no current algorithm reads
// them; see DESIGN.md.
type WeightsConfig struct {
	Time           float64 `yaml:"time"`
	Cost           float64 `yaml:"cost"`
	Reliability    float64 `yaml:"reliability"`
	Sustainability float64 `yaml:"sustainability"`
}

// APIConfig applies to every outbound connector.
type APIConfig struct {
	TimeoutSec    int `yaml:"timeout_sec" validate:"min=1"`
	RetryAttempts int `yaml:"retry_attempts" validate:"min=0"`
	RetryDelaySec int `yaml:"retry_delay_sec" validate:"min=0"`
}

// EndpointConfig identifies one upstream system.
type EndpointConfig struct {
	URL    string `yaml:"url" validate:"required,url"`
	Key    string `yaml:"key" validate:"required"`
	Secret string `yaml:"secret"`
}

type NotifyConfig struct {
	Email     EmailConfig     `yaml:"email"`
	SMS       SMSConfig       `yaml:"sms"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

type EmailConfig struct {
	Enabled    bool     `yaml:"enabled"`
	SMTPServer string   `yaml:"smtp_server"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

type SMSConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIURL     string   `yaml:"api_url"`
	APIKey     string   `yaml:"api_key"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIURL  string `yaml:"api_url"`
	APIKey  string `yaml:"api_key"`
	OrgID   string `yaml:"org_id"`
}

type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Secret  string            `yaml:"secret"`
	Headers map[string]string `yaml:"headers"`
}

// QueueConfig points decisions at the operations AMQP queue.
type QueueConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
}

// StreamConfig points the decision stream at a Kafka broker.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Broker  string `yaml:"broker"`
	Topic   string `yaml:"topic"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Default returns the configuration the agent ships with. Endpoint
// URLs and keys have no sane defaults and must come from the
// environment or YAML.
func Default() *Config {
	return &Config{
		AgentName: "LogisticsCoordinator",
		StateDir:  "state",
		Intervals: IntervalsConfig{
			MainLoopSec:  60,
			InventorySec: 300,
			ShipmentSec:  120,
			WeatherSec:   3600,
		},
		Engine: EngineConfig{
			RerouteDelayMinutes: 60,
			MinVisibilityMeters: 200,
			MaxWindSpeedKmh:     80,
		},
		Weights: WeightsConfig{
			Time:           0.4,
			Cost:           0.3,
			Reliability:    0.2,
			Sustainability: 0.1,
		},
		API: APIConfig{
			TimeoutSec:    30,
			RetryAttempts: 3,
			RetryDelaySec: 5,
		},
		Notify: NotifyConfig{
			Email:     EmailConfig{Enabled: true, SMTPPort: 587},
			SMS:       SMSConfig{Enabled: true},
			Dashboard: DashboardConfig{Enabled: true},
			Webhook:   WebhookConfig{Enabled: false},
		},
		Stream: StreamConfig{Topic: "logistics.decisions"},
		Queue:  QueueConfig{Queue: "logistics.operations"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then .env, then
// the environment, then the YAML file at path (if given), validated
// last.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yamlv3.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envReader applies environment overrides, keeping the first parse
// error it hits.
type envReader struct {
	err error
}

func (r *envReader) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (r *envReader) intVal(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = n
}

func (r *envReader) floatVal(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = f
}

func (r *envReader) boolVal(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true")
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (r *envReader) jsonMap(key string, dst *map[string]string) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = m
}

func (c *Config) applyEnv() error {
	r := &envReader{}

	r.str("AGENT_NAME", &c.AgentName)
	r.str("STATE_DIR", &c.StateDir)

	r.intVal("MAIN_LOOP_INTERVAL", &c.Intervals.MainLoopSec)
	r.intVal("INVENTORY_CHECK_INTERVAL", &c.Intervals.InventorySec)
	r.intVal("SHIPMENT_CHECK_INTERVAL", &c.Intervals.ShipmentSec)
	r.intVal("WEATHER_CHECK_INTERVAL", &c.Intervals.WeatherSec)

	r.intVal("REROUTE_DELAY_THRESHOLD_MINUTES", &c.Engine.RerouteDelayMinutes)
	r.floatVal("MIN_VISIBILITY_METERS", &c.Engine.MinVisibilityMeters)
	r.floatVal("MAX_WIND_SPEED_KMH", &c.Engine.MaxWindSpeedKmh)

	r.floatVal("DECISION_TIME_WEIGHT", &c.Weights.Time)
	r.floatVal("DECISION_COST_WEIGHT", &c.Weights.Cost)
	r.floatVal("DECISION_RELIABILITY_WEIGHT", &c.Weights.Reliability)
	r.floatVal("DECISION_SUSTAINABILITY_WEIGHT", &c.Weights.Sustainability)

	r.intVal("API_TIMEOUT_SECONDS", &c.API.TimeoutSec)
	r.intVal("API_RETRY_ATTEMPTS", &c.API.RetryAttempts)
	r.intVal("API_RETRY_DELAY_SECONDS", &c.API.RetryDelaySec)

	r.str("INVENTORY_API_URL", &c.Inventory.URL)
	r.str("INVENTORY_API_KEY", &c.Inventory.Key)
	r.str("INVENTORY_API_SECRET", &c.Inventory.Secret)
	r.str("TRANSPORT_API_URL", &c.Transport.URL)
	r.str("TRANSPORT_API_KEY", &c.Transport.Key)
	r.str("TRANSPORT_API_SECRET", &c.Transport.Secret)
	r.str("WEATHER_API_URL", &c.Weather.URL)
	r.str("WEATHER_API_KEY", &c.Weather.Key)

	r.boolVal("NOTIFY_EMAIL", &c.Notify.Email.Enabled)
	r.str("NOTIFY_EMAIL_SMTP_SERVER", &c.Notify.Email.SMTPServer)
	r.intVal("NOTIFY_EMAIL_SMTP_PORT", &c.Notify.Email.SMTPPort)
	r.str("NOTIFY_EMAIL_USERNAME", &c.Notify.Email.Username)
	r.str("NOTIFY_EMAIL_PASSWORD", &c.Notify.Email.Password)
	r.str("NOTIFY_EMAIL_FROM", &c.Notify.Email.From)
	r.list("NOTIFY_EMAIL_RECIPIENTS", &c.Notify.Email.Recipients)

	r.boolVal("NOTIFY_SMS", &c.Notify.SMS.Enabled)
	r.str("NOTIFY_SMS_API_URL", &c.Notify.SMS.APIURL)
	r.str("NOTIFY_SMS_API_KEY", &c.Notify.SMS.APIKey)
	r.str("NOTIFY_SMS_FROM", &c.Notify.SMS.From)
	r.list("NOTIFY_SMS_RECIPIENTS", &c.Notify.SMS.Recipients)

	r.boolVal("NOTIFY_DASHBOARD", &c.Notify.Dashboard.Enabled)
	r.str("NOTIFY_DASHBOARD_API_URL", &c.Notify.Dashboard.APIURL)
	r.str("NOTIFY_DASHBOARD_API_KEY", &c.Notify.Dashboard.APIKey)
	r.str("NOTIFY_DASHBOARD_ORG_ID", &c.Notify.Dashboard.OrgID)

	r.boolVal("NOTIFY_API_WEBHOOK", &c.Notify.Webhook.Enabled)
	r.str("NOTIFY_WEBHOOK_URL", &c.Notify.Webhook.URL)
	r.str("NOTIFY_WEBHOOK_SECRET", &c.Notify.Webhook.Secret)
	r.jsonMap("NOTIFY_WEBHOOK_HEADERS", &c.Notify.Webhook.Headers)

	r.boolVal("OPS_QUEUE_ENABLED", &c.Queue.Enabled)
	r.str("AMQP_URL", &c.Queue.URL)
	r.str("OPS_QUEUE_NAME", &c.Queue.Queue)

	r.boolVal("STREAM_ENABLED", &c.Stream.Enabled)
	r.str("KAFKA_BROKER", &c.Stream.Broker)
	r.str("KAFKA_TOPIC", &c.Stream.Topic)

	r.str("LOG_LEVEL", &c.Logging.Level)
	r.str("LOG_FORMAT", &c.Logging.Format)

	return r.err
}

// Validate checks structural constraints and the weight sum. Weights
// must still describe a full distribution even though nothing consumes
// them yet.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	sum := c.Weights.Time + c.Weights.Cost + c.Weights.Reliability + c.Weights.Sustainability
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("decision weights sum to %.2f, expected 1.0", sum)
	}
	if c.Queue.Enabled && c.Queue.URL == "" {
		return fmt.Errorf("ops queue enabled without AMQP_URL")
	}
	if c.Stream.Enabled && c.Stream.Broker == "" {
		return fmt.Errorf("stream enabled without KAFKA_BROKER")
	}
	return nil
}

// EngineParams translates the tunable settings into engine parameters.
func (c *Config) EngineParams() engine.Params {
	p := engine.DefaultParams()
	p.RerouteDelayMinutes = c.Engine.RerouteDelayMinutes
	return p
}

// MonitorThresholds translates the condition limits for the monitor.
func (c *Config) MonitorThresholds() monitor.Thresholds {
	return monitor.Thresholds{
		MinVisibilityMeters: c.Engine.MinVisibilityMeters,
		MaxWindSpeedKmh:     c.Engine.MaxWindSpeedKmh,
	}
}

// Paths under the state directory.
func (c *Config) PidfilePath() string { return filepath.Join(c.StateDir, "logisticsd.pid") }
func (c *Config) SocketPath() string  { return filepath.Join(c.StateDir, "logisticsd.sock") }
func (c *Config) JournalDir() string  { return filepath.Join(c.StateDir, "journal") }

// NewLogger builds the process logger per the logging settings.
func (c LoggingConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(c.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/smukkama/pm25-intent/internal/airquality"
	"github.com/smukkama/pm25-intent/internal/i18n"
)

const (
	SourceStatic = "static"
	SourceDevice = "device"
)

type Config struct {
	App       AppConfig
	Intent    IntentConfig
	PM25      PM25Config
	Location  LocationConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	TCPServer TCPServerConfig
	MQTT      MQTTConfig
}

type AppConfig struct {
	Env      string
	LogLevel slog.Level
}

type IntentConfig struct {
	Locale  i18n.Locale
	Profile airquality.Profile
}

type PM25Config struct {
	APIURL  string
	Timeout time.Duration
}

type LocationConfig struct {
	Source    string
	Latitude  float64
	Longitude float64
	DeviceID  string
	Attempts  int
	Interval  time.Duration
	FixMaxAge time.Duration

	hasLat, hasLng bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers               []string
	TopicLocationRequests string
	ConsumerGroup         string
	NumPartitions         int
}

type TCPServerConfig struct {
	Port              int
	MaxConnections    int
	Workers           int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Enabled reports whether the MQTT fix ingest should run
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	appEnv := strings.ToLower(getEnv("APP_ENV", "dev"))
	switch appEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	locale, err := i18n.ParseLocale(getEnv("LOCALE", string(i18n.Thai)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCALE: %w", err)
	}

	profile, err := airquality.ParseProfile(getEnv("AQ_PROFILE", airquality.ProfileThai))
	if err != nil {
		return nil, fmt.Errorf("invalid AQ_PROFILE: %w", err)
	}

	apiURL := getEnv("PM25_API_URL", "")
	if apiURL == "" {
		return nil, errors.New("PM25_API_URL is required")
	}

	loc, err := loadLocation()
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Env:      appEnv,
			LogLevel: level,
		},
		Intent: IntentConfig{
			Locale:  locale,
			Profile: profile,
		},
		PM25: PM25Config{
			APIURL:  apiURL,
			Timeout: getEnvAsDuration("PM25_HTTP_TIMEOUT", 10*time.Second),
		},
		Location: loc,
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "pm25_user"),
			Password: getEnv("DB_PASSWORD", "pm25_pass"),
			DBName:   getEnv("DB_NAME", "pm25_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:               strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicLocationRequests: getEnv("KAFKA_TOPIC_LOCATION_REQUESTS", "location.requests"),
			ConsumerGroup:         getEnv("KAFKA_CONSUMER_GROUP", "pm25-gateway"),
			NumPartitions:         getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		TCPServer: TCPServerConfig{
			Port:              getEnvAsInt("TCP_PORT", 8080),
			MaxConnections:    getEnvAsInt("TCP_MAX_CONNECTIONS", 10000),
			Workers:           getEnvAsInt("TCP_INVOKE_WORKERS", 32),
			IdentifyTimeout:   getEnvAsDuration("TCP_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("TCP_INACTIVITY_TIMEOUT", 2*time.Minute),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "pm25-gateway"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			Topic:    getEnv("MQTT_TOPIC", "devices/+/location"),
		},
	}

	return config, nil
}

func loadLocation() (LocationConfig, error) {
	loc := LocationConfig{
		Source:    strings.ToLower(getEnv("LOCATION_SOURCE", SourceStatic)),
		DeviceID:  getEnv("DEVICE_ID", ""),
		Attempts:  getEnvAsInt("LOCATION_ATTEMPTS", 10),
		Interval:  getEnvAsDuration("LOCATION_INTERVAL", 500*time.Millisecond),
		FixMaxAge: getEnvAsDuration("LOCATION_FIX_MAX_AGE", 2*time.Minute),
	}

	switch loc.Source {
	case SourceStatic, SourceDevice:
	default:
		return LocationConfig{}, fmt.Errorf("invalid LOCATION_SOURCE %q (allowed: static, device)", loc.Source)
	}

	var err error
	if loc.Latitude, loc.hasLat, err = getEnvAsFloat("LOCATION_LAT"); err != nil {
		return LocationConfig{}, err
	}
	if loc.Longitude, loc.hasLng, err = getEnvAsFloat("LOCATION_LNG"); err != nil {
		return LocationConfig{}, err
	}

	return loc, nil
}

// Validate checks what a single CLI invocation needs. The gateway builds its
// capabilities per device and does not call it.
func (l LocationConfig) Validate() error {
	switch l.Source {
	case SourceStatic:
		if !l.hasLat || !l.hasLng {
			return errors.New("LOCATION_LAT and LOCATION_LNG are required when LOCATION_SOURCE=static")
		}
		if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
			return fmt.Errorf("LOCATION_LAT/LOCATION_LNG out of range: %v,%v", l.Latitude, l.Longitude)
		}
	case SourceDevice:
		if l.DeviceID == "" {
			return errors.New("DEVICE_ID is required when LOCATION_SOURCE=device")
		}
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string) (float64, bool, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return value, true, nil
}

// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/domain"
)

// Config holds all runtime settings. Optional integrations are disabled
// while their address is empty.
type Config struct {
	Port        string
	IonexDir    string
	NavDir      string
	DBPath      string // Empty disables the report cache.
	NetCDFDir   string // Empty disables NetCDF export.
	CORSOrigins []string

	FTPHost      string // Empty disables remote retrieval.
	FTPUser      string
	FTPPassword  string
	FTPIonexPath string
	FTPNavPath   string

	Target domain.Target // Default target for the CLI.

	MQTTBroker string
	MQTTTopic  string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	SerialPort string
	SerialBaud uint

	LogLevel string
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		IonexDir:     getEnv("IONEX_DIR", "./data/ionex"),
		NavDir:       getEnv("NAV_DIR", "./data/nav"),
		DBPath:       getEnv("DB_PATH", ""),
		NetCDFDir:    getEnv("NETCDF_DIR", ""),
		CORSOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		FTPHost:      getEnv("FTP_HOST", ""),
		FTPUser:      getEnv("FTP_USER", "anonymous"),
		FTPPassword:  getEnv("FTP_PASSWORD", "anonymous"),
		FTPIonexPath: getEnv("FTP_IONEX_PATH", "/gnss/products/ionex/{yyyy}/{ddd}/{name}"),
		FTPNavPath:   getEnv("FTP_NAV_PATH", "/gnss/data/daily/{yyyy}/{ddd}/{yy}n/{name}"),
		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "iono/delay"),
		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", ""),
		InfluxBucket: getEnv("INFLUX_BUCKET", "iono"),
		SerialPort:   getEnv("SERIAL_PORT", "/dev/ttyUSB0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Target.Lat, err = getFloat("TARGET_LAT", 0); err != nil {
		return nil, err
	}
	if cfg.Target.Lon, err = getFloat("TARGET_LON", 0); err != nil {
		return nil, err
	}
	if cfg.Target.ElevationDeg, err = getFloat("TARGET_ELEVATION", 90); err != nil {
		return nil, err
	}
	if cfg.Target.AzimuthDeg, err = getFloat("TARGET_AZIMUTH", 0); err != nil {
		return nil, err
	}
	baud, err := strconv.ParseUint(getEnv("SERIAL_BAUD", "9600"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: SERIAL_BAUD: %v", domain.ErrValidation, err)
	}
	cfg.SerialBaud = uint(baud)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and integration settings.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%w: PORT %q", domain.ErrValidation, c.Port)
	}
	if c.Target.Lat < -90 || c.Target.Lat > 90 {
		return fmt.Errorf("%w: TARGET_LAT %.4f outside [-90, 90]", domain.ErrValidation, c.Target.Lat)
	}
	if c.Target.Lon < -180 || c.Target.Lon > 180 {
		return fmt.Errorf("%w: TARGET_LON %.4f outside [-180, 180]", domain.ErrValidation, c.Target.Lon)
	}
	if c.Target.ElevationDeg < 0 || c.Target.ElevationDeg > 90 {
		return fmt.Errorf("%w: TARGET_ELEVATION %.4f outside [0, 90]", domain.ErrValidation, c.Target.ElevationDeg)
	}
	if c.Target.AzimuthDeg < -360 || c.Target.AzimuthDeg > 360 {
		return fmt.Errorf("%w: TARGET_AZIMUTH %.4f outside [-360, 360]", domain.ErrValidation, c.Target.AzimuthDeg)
	}
	if c.InfluxURL != "" && (c.InfluxToken == "" || c.InfluxOrg == "") {
		return fmt.Errorf("%w: INFLUX_URL requires INFLUX_TOKEN and INFLUX_ORG", domain.ErrValidation)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", domain.ErrValidation, err)
	}
	return nil
}

// ConfigureLogging applies LogLevel to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%q is not a number", domain.ErrValidation, key, raw)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

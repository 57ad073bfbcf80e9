// Package main provides the ionospheric delay API HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/adapter/fetch"
	"go.ngs.io/iono-api/internal/adapter/sink"
	"go.ngs.io/iono-api/internal/adapter/sink/influx"
	"go.ngs.io/iono-api/internal/adapter/sink/mqtt"
	"go.ngs.io/iono-api/internal/adapter/sink/netcdf"
	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/adapter/store/local"
	"go.ngs.io/iono-api/internal/adapter/store/sqlite"
	"go.ngs.io/iono-api/internal/config"
	httpHandler "go.ngs.io/iono-api/internal/http"
	"go.ngs.io/iono-api/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env", ".env", "Optional dotenv file")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("iono-api version %s\n", version)
		return
	}

	// Load configuration from environment.
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.ConfigureLogging()

	log.Info("Starting ionospheric delay API server...")
	log.Infof("Port: %s", cfg.Port)
	log.Infof("IONEX directory: %s", cfg.IonexDir)
	log.Infof("Navigation directory: %s", cfg.NavDir)

	// Initialize source stores, with remote retrieval when configured.
	var ionexFetcher, navFetcher store.Fetcher
	if cfg.FTPHost != "" {
		log.Infof("Remote retrieval enabled from %s", cfg.FTPHost)
		ionexFetcher = fetch.NewFTPFetcher(fetch.Config{
			Host:         cfg.FTPHost,
			User:         cfg.FTPUser,
			Password:     cfg.FTPPassword,
			PathTemplate: cfg.FTPIonexPath,
		})
		navFetcher = fetch.NewFTPFetcher(fetch.Config{
			Host:         cfg.FTPHost,
			User:         cfg.FTPUser,
			Password:     cfg.FTPPassword,
			PathTemplate: cfg.FTPNavPath,
		})
	} else {
		log.Info("Remote retrieval disabled (FTP_HOST not set)")
	}
	ionexStore := local.NewLocalStore(cfg.IonexDir, ionexFetcher)
	navStore := local.NewLocalStore(cfg.NavDir, navFetcher)

	// Initialize report cache (optional).
	var reports store.ReportStore
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open report cache: %v", err)
		}
		defer db.Close()
		reports = db
		log.Infof("Report cache: %s", cfg.DBPath)
	} else {
		log.Info("Report cache disabled (DB_PATH not set)")
	}

	// Initialize sinks (optional).
	out, err := buildSinks(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize sinks: %v", err)
	}
	var reportSink sink.Sink
	if len(out) > 0 {
		defer out.Close()
		reportSink = out
	}

	// Initialize use case.
	delayUC := usecase.NewDelayUseCase(ionexStore, navStore, reports, reportSink)

	// Setup router.
	router := httpHandler.SetupRouter(delayUC, cfg.CORSOrigins)

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Server listening on %s", addr)
	log.Infof("Health check: http://localhost:%s/health", cfg.Port)
	log.Info("API endpoints:")
	log.Info("  - GET /v1/delays")
	log.Info("  - GET /v1/klobuchar")
	log.Info("  - GET /v1/gpstime")
	log.Info("  - GET /v1/files")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildSinks creates every sink whose destination is configured.
func buildSinks(cfg *config.Config) (sink.Multi, error) {
	var out sink.Multi
	if cfg.NetCDFDir != "" {
		log.Infof("NetCDF export: %s", cfg.NetCDFDir)
		out = append(out, netcdf.NewSink(cfg.NetCDFDir))
	}
	if cfg.InfluxURL != "" {
		log.Infof("InfluxDB export: %s (bucket %s)", cfg.InfluxURL, cfg.InfluxBucket)
		out = append(out, influx.NewSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	if cfg.MQTTBroker != "" {
		host, _ := os.Hostname()
		s, err := mqtt.NewSink(cfg.MQTTBroker, "iono-api-"+host, cfg.MQTTTopic)
		if err != nil {
			out.Close()
			return nil, err
		}
		log.Infof("MQTT export: %s (topic %s)", cfg.MQTTBroker, cfg.MQTTTopic)
		out = append(out, s)
	}
	return out, nil
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Ionospheric Delay API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  iono-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -env FILE      Optional dotenv file (default: .env)")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  IONEX_DIR               IONEX TEC map directory (default: ./data/ionex)")
	fmt.Println("  NAV_DIR                 RINEX navigation directory (default: ./data/nav)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  DB_PATH                 SQLite report cache (optional)")
	fmt.Println("  NETCDF_DIR              NetCDF export directory (optional)")
	fmt.Println("  FTP_HOST                Archive host for missing files, host:port (optional)")
	fmt.Println("  FTP_USER, FTP_PASSWORD  Archive credentials (default: anonymous)")
	fmt.Println("  FTP_IONEX_PATH          Archive path template for TEC maps")
	fmt.Println("  FTP_NAV_PATH            Archive path template for navigation files")
	fmt.Println("  MQTT_BROKER             MQTT broker URL (optional)")
	fmt.Println("  MQTT_TOPIC              MQTT topic prefix (default: iono/delay)")
	fmt.Println("  INFLUX_URL              InfluxDB URL (optional)")
	fmt.Println("  INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET")
	fmt.Println("  LOG_LEVEL               Log level (default: info)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  iono-api")
	fmt.Println()
	fmt.Println("  # Start server on custom port with a report cache")
	fmt.Println("  PORT=3000 DB_PATH=./reports.db iono-api")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                    Health check")
	fmt.Println("  GET /metrics                   Prometheus metrics")
	fmt.Println("  GET /v1/files                  List TEC map and navigation files")
	fmt.Println("  GET /v1/delays                 Grid and broadcast delay series")
	fmt.Println("  GET /v1/klobuchar              Broadcast delay at one instant")
	fmt.Println("  GET /v1/gpstime                Convert UTC to GPS week and seconds")
	fmt.Println()
}

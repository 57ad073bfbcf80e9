// Command ionodelay computes ionospheric delays from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.ngs.io/iono-api/internal/adapter/fetch"
	"go.ngs.io/iono-api/internal/adapter/receiver"
	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/adapter/store/local"
	"go.ngs.io/iono-api/internal/adapter/store/sqlite"
	"go.ngs.io/iono-api/internal/config"
	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/usecase"
)

var (
	rootCmd = &cobra.Command{
		Use:               "ionodelay",
		Short:             "Ionospheric delay from IONEX TEC maps and broadcast coefficients.",
		PersistentPreRunE: loadConfig,
	}
	cfg *config.Config

	flagEnvFile   string
	flagIonex     string
	flagNav       string
	flagLat       float64
	flagLon       float64
	flagElevation float64
	flagAzimuth   float64
	flagTime      string
	flagJSON      bool
	flagRefresh   bool
	flagKind      string
	flagFile      string
	flagPort      string
	flagBaud      uint
	flagDate      string
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env", ".env", "optional dotenv file")

	addTargetFlags := func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&flagLat, "lat", 0, "target latitude in degrees (default TARGET_LAT)")
		cmd.Flags().Float64Var(&flagLon, "lon", 0, "target longitude in degrees (default TARGET_LON)")
		cmd.Flags().Float64Var(&flagElevation, "elevation", 90, "satellite elevation in degrees (default TARGET_ELEVATION)")
		cmd.Flags().Float64Var(&flagAzimuth, "azimuth", 0, "satellite azimuth in degrees (default TARGET_AZIMUTH)")
	}

	seriesCmd := &cobra.Command{
		Use:   "series",
		Short: "print grid and broadcast delay series for one TEC map file",
		Run:   seriesCommand,
	}
	seriesCmd.Flags().StringVar(&flagIonex, "ionex", "", "IONEX file name")
	seriesCmd.Flags().StringVar(&flagNav, "nav", "", "navigation file name (optional)")
	seriesCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
	seriesCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "bypass the report cache")
	addTargetFlags(seriesCmd)
	rootCmd.AddCommand(seriesCmd)

	klobucharCmd := &cobra.Command{
		Use:   "klobuchar",
		Short: "print the broadcast delay at one instant",
		Run:   klobucharCommand,
	}
	klobucharCmd.Flags().StringVar(&flagNav, "nav", "", "navigation file name")
	klobucharCmd.Flags().StringVar(&flagTime, "time", "", "UTC instant, RFC3339 (default now)")
	addTargetFlags(klobucharCmd)
	rootCmd.AddCommand(klobucharCmd)

	gpsTimeCmd := &cobra.Command{
		Use:   "gpstime [RFC3339]",
		Short: "convert a UTC instant to GPS week and seconds of week",
		Args:  cobra.MaximumNArgs(1),
		Run:   gpsTimeCommand,
	}
	rootCmd.AddCommand(gpsTimeCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch <name>...",
		Short: "download files from the archive into the local directories",
		Args:  cobra.MinimumNArgs(1),
		Run:   fetchCommand,
	}
	fetchCmd.Flags().StringVar(&flagKind, "kind", "ionex", "file kind: ionex or nav")
	rootCmd.AddCommand(fetchCmd)

	receiverCmd := &cobra.Command{
		Use:   "receiver",
		Short: "print broadcast delays for every satellite a GPS receiver tracks",
		Run:   receiverCommand,
	}
	receiverCmd.Flags().StringVar(&flagNav, "nav", "", "navigation file name")
	receiverCmd.Flags().StringVar(&flagFile, "file", "", "read NMEA from a file instead of the serial port")
	receiverCmd.Flags().StringVar(&flagPort, "device", "", "serial device (default SERIAL_PORT)")
	receiverCmd.Flags().UintVar(&flagBaud, "baud", 0, "serial baud rate (default SERIAL_BAUD)")
	receiverCmd.Flags().StringVar(&flagDate, "date", "", "UTC date YYYY-MM-DD until an RMC sentence arrives")
	rootCmd.AddCommand(receiverCmd)

	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "list cached delay reports",
		Run:   reportsCommand,
	}
	rootCmd.AddCommand(reportsCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flagEnvFile)
	if err != nil {
		return err
	}
	c.ConfigureLogging()
	cfg = c
	return nil
}

// target merges the target flags with the configured default target.
func target(cmd *cobra.Command) domain.Target {
	t := cfg.Target
	if cmd.Flags().Changed("lat") {
		t.Lat = flagLat
	}
	if cmd.Flags().Changed("lon") {
		t.Lon = flagLon
	}
	if cmd.Flags().Changed("elevation") {
		t.ElevationDeg = flagElevation
	}
	if cmd.Flags().Changed("azimuth") {
		t.AzimuthDeg = flagAzimuth
	}
	return t
}

// newUseCase wires the stores and an optional report cache. The returned
// function releases them.
func newUseCase() (*usecase.DelayUseCase, func()) {
	var ionexFetcher, navFetcher store.Fetcher
	if cfg.FTPHost != "" {
		ionexFetcher = newFetcher(cfg.FTPIonexPath)
		navFetcher = newFetcher(cfg.FTPNavPath)
	}

	var reports store.ReportStore
	cleanup := func() {}
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		fatalIf(err)
		reports = db
		cleanup = func() { db.Close() }
	}

	uc := usecase.NewDelayUseCase(
		local.NewLocalStore(cfg.IonexDir, ionexFetcher),
		local.NewLocalStore(cfg.NavDir, navFetcher),
		reports, nil)
	return uc, cleanup
}

func newFetcher(pathTemplate string) *fetch.FTPFetcher {
	return fetch.NewFTPFetcher(fetch.Config{
		Host:         cfg.FTPHost,
		User:         cfg.FTPUser,
		Password:     cfg.FTPPassword,
		PathTemplate: pathTemplate,
	})
}

func seriesCommand(cmd *cobra.Command, args []string) {
	uc, cleanup := newUseCase()
	defer cleanup()

	t := target(cmd)
	resp, err := uc.Execute(cmd.Context(), usecase.DelayRequest{
		IonexFile:    flagIonex,
		NavFile:      flagNav,
		Lat:          &t.Lat,
		Lon:          &t.Lon,
		ElevationDeg: t.ElevationDeg,
		AzimuthDeg:   t.AzimuthDeg,
		Refresh:      flagRefresh,
	})
	fatalIf(err)

	if flagJSON {
		fatalIf(printJSON(os.Stdout, resp))
		return
	}

	fmt.Printf("# %s cell N%.2f S%.2f W%.2f E%.2f, %d epochs skipped\n",
		resp.IonexFile, resp.BoundingBox.North, resp.BoundingBox.South,
		resp.BoundingBox.West, resp.BoundingBox.East, resp.Skipped)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tWEEK\tSOW\tTECU\tGRID_M\tKLOBUCHAR_M")
	for _, p := range resp.Points {
		klob := "-"
		if p.KlobucharDelayM != nil {
			klob = fmt.Sprintf("%.4f", *p.KlobucharDelayM)
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f\t%.2f\t%.4f\t%s\n", p.Time, p.GPSWeek, p.TimeOfWeek, p.TECU, p.GridDelayM, klob)
	}
	fatalIf(w.Flush())
}

func klobucharCommand(cmd *cobra.Command, args []string) {
	uc, cleanup := newUseCase()
	defer cleanup()

	at := time.Now().UTC()
	if flagTime != "" {
		var err error
		at, err = time.Parse(time.RFC3339, flagTime)
		fatalIf(err)
	}

	t := target(cmd)
	resp, err := uc.Klobuchar(cmd.Context(), usecase.KlobucharRequest{
		NavFile:      flagNav,
		Time:         at,
		Lat:          &t.Lat,
		Lon:          &t.Lon,
		ElevationDeg: t.ElevationDeg,
		AzimuthDeg:   t.AzimuthDeg,
	})
	fatalIf(err)
	fatalIf(printJSON(os.Stdout, resp))
}

func gpsTimeCommand(cmd *cobra.Command, args []string) {
	at := time.Now().UTC()
	if len(args) == 1 {
		var err error
		at, err = time.Parse(time.RFC3339, args[0])
		fatalIf(err)
	}
	resp, err := usecase.GPSTime(at)
	fatalIf(err)
	fmt.Printf("%s week %d sow %.3f\n", resp.Time, resp.GPSWeek, resp.TimeOfWeek)
}

func fetchCommand(cmd *cobra.Command, args []string) {
	if cfg.FTPHost == "" {
		fatalIf(fmt.Errorf("%w: FTP_HOST is not set", domain.ErrValidation))
	}

	var s *local.LocalStore
	switch flagKind {
	case "ionex":
		s = local.NewLocalStore(cfg.IonexDir, newFetcher(cfg.FTPIonexPath))
	case "nav":
		s = local.NewLocalStore(cfg.NavDir, newFetcher(cfg.FTPNavPath))
	default:
		fatalIf(fmt.Errorf("%w: unknown kind %q", domain.ErrValidation, flagKind))
	}

	for _, name := range args {
		rc, err := s.Open(cmd.Context(), name)
		fatalIf(err)
		rc.Close()
		log.WithField("file", name).Info("available")
	}
}

func receiverCommand(cmd *cobra.Command, args []string) {
	uc, cleanup := newUseCase()
	defer cleanup()

	coeffs, err := uc.Coefficients(cmd.Context(), flagNav)
	fatalIf(err)

	var seed time.Time
	if flagDate != "" {
		seed, err = time.Parse(time.DateOnly, flagDate)
		fatalIf(err)
	}

	var src io.ReadCloser
	if flagFile != "" {
		src, err = os.Open(flagFile)
	} else {
		port, baud := cfg.SerialPort, cfg.SerialBaud
		if flagPort != "" {
			port = flagPort
		}
		if flagBaud != 0 {
			baud = flagBaud
		}
		log.WithFields(log.Fields{"device": port, "baud": baud}).Info("opening receiver")
		src, err = receiver.OpenSerial(port, baud)
	}
	fatalIf(err)
	defer src.Close()

	enc := json.NewEncoder(os.Stdout)
	err = receiver.Decode(cmd.Context(), src, receiver.NewTracker(seed), func(fix receiver.Fix) error {
		delays, err := usecase.SatelliteDelays(fix, coeffs)
		if err != nil {
			return err
		}
		return enc.Encode(struct {
			Time       time.Time                `json:"time"`
			Lat        float64                  `json:"lat"`
			Lon        float64                  `json:"lon"`
			Satellites []usecase.SatelliteDelay `json:"satellites"`
		}{fix.Time, fix.Lat, fix.Lon, delays})
	})
	if errors.Is(err, context.Canceled) {
		log.Info("receiver stopped")
		return
	}
	fatalIf(err)
}

func reportsCommand(cmd *cobra.Command, args []string) {
	if cfg.DBPath == "" {
		fatalIf(fmt.Errorf("%w: DB_PATH is not set", domain.ErrValidation))
	}
	db, err := sqlite.Open(cfg.DBPath)
	fatalIf(err)
	defer db.Close()

	summaries, err := db.ListReports(cmd.Context())
	fatalIf(err)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIONEX\tNAV\tLAT\tLON\tPOINTS\tCOMPUTED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%d\t%s\n", s.ID, s.IonexFile, s.NavFile, s.Lat, s.Lon, s.Points, s.ComputedAt)
	}
	fatalIf(w.Flush())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SetHelpTemplate(`{{.UsageString}}`)
	fatalIf(rootCmd.ExecuteContext(ctx))
}

func fatalIf(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

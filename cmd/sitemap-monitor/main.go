package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/server"
	"sitemap-monitor/pkg/sitemap"
	"sitemap-monitor/pkg/utils"
)

const version = "1.0.0"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("sitemap-monitor %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `sitemap-monitor - Sitemap discovery and URL health checker

Usage:
  sitemap-monitor <command> [options]

Commands:
  check       Process one sitemap and print the JSON report
  serve       Start the HTTP API (/process_sitemap, /health, /memory)
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'sitemap-monitor <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. Only the default path may be absent;
// a path given explicitly must exist.
func loadConfig(path string) (*config.AppConfig, error) {
	return config.Load(path, path == defaultConfigPath)
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Debugf("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return appCfg, nil
}

// limitFlags registers the per-run limit overrides on fs
func limitFlags(fs *flag.FlagSet) *config.Limits {
	limits := &config.Limits{}
	fs.IntVar(&limits.MaxURLs, "max-urls", 0, "Maximum page URLs to check (0 = config default)")
	fs.IntVar(&limits.MaxMemoryMB, "max-memory-mb", 0, "Stop early at this heap size in MiB (0 = config default)")
	fs.IntVar(&limits.ChunkSize, "chunk-size", 0, "URLs checked per batch (0 = config default)")
	fs.IntVar(&limits.Workers, "workers", 0, "Concurrent probes per batch (0 = config default)")
	return limits
}

// runCheck handles the check subcommand
func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	limits := limitFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemap-monitor check [options] <sitemap-url>\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sitemap-monitor check https://example.com/sitemap.xml\n")
		fmt.Fprintf(os.Stderr, "  sitemap-monitor check -max-urls 500 -workers 20 https://example.com/sitemap_index.xml\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := setupLogger(*logLevel, os.Stderr)
	startPprof(*pprofAddr, log)

	exitCode := doCheck(ctx, *configFile, fs.Arg(0), *limits, log, os.Stdout)
	stop()
	os.Exit(exitCode)
}

// doCheck runs one sitemap and writes the report as JSON to stdout.
// Returns exit code (0 = success, 1 = error).
func doCheck(ctx context.Context, configPath, sitemapURL string, limits config.Limits, log *logrus.Logger, stdout io.Writer) int {
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	processor, err := sitemap.NewProcessor(appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Errorf("Failed to initialize processor: %v", err)
		return 1
	}

	report, err := processor.ProcessSitemap(ctx, sitemapURL, limits)
	if err != nil {
		log.WithField("error_type", utils.CategorizeError(err)).Errorf("Check failed: %v", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Errorf("Failed to write report: %v", err)
		return 1
	}
	return 0
}

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides server.addr from config)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemap-monitor serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := setupLogger(*logLevel, os.Stderr)
	startPprof(*pprofAddr, log)

	exitCode := doServe(ctx, *configFile, *addr, log)
	stop()
	os.Exit(exitCode)
}

// doServe runs the HTTP API until ctx is cancelled
func doServe(ctx context.Context, configPath, addr string, log *logrus.Logger) int {
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if addr != "" {
		appCfg.Server.Addr = addr
	}
	logAppConfig(appCfg, log)

	processor, err := sitemap.NewProcessor(appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Errorf("Failed to initialize processor: %v", err)
		return 1
	}

	srv := server.NewServer(processor, appCfg.Server, logrus.NewEntry(log))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server error: %v", err)
		return 1
	}
	log.Info("Server stopped.")
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemap-monitor validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: limits max_urls=%d max_memory_mb=%d chunk_size=%d workers=%d\n",
		appCfg.Limits.MaxURLs, appCfg.Limits.MaxMemoryMB, appCfg.Limits.ChunkSize, appCfg.Limits.Workers)
	fmt.Fprintf(stdout, "OK: visited_store=%s server.addr=%s\n", appCfg.VisitedStore, appCfg.Server.Addr)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	go func() {
		log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Errorf("pprof server failed: %v", err)
		}
	}()
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: MaxReqs:%d, MaxDepth:%d, VisitedStore:%s, StateDir:%s",
		appCfg.MaxRequests, appCfg.MaxDepth, appCfg.VisitedStore, appCfg.StateDir)
	log.Infof("Global Config Limits: MaxURLs:%d, MaxMemoryMB:%d, ChunkSize:%d, Workers:%d",
		appCfg.Limits.MaxURLs, appCfg.Limits.MaxMemoryMB, appCfg.Limits.ChunkSize, appCfg.Limits.Workers)
	log.Infof("Global Config Timeouts: Fetch:%v, Probe:%v, Retries Max:%d InitialDelay:%v MaxDelay:%v",
		appCfg.FetchTimeout, appCfg.ProbeTimeout, appCfg.Retries(), appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Global Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
	log.Infof("Server: Addr:%s, ReadHeaderTimeout:%v, ShutdownGrace:%v",
		appCfg.Server.Addr, appCfg.Server.ReadHeaderTimeout, appCfg.Server.ShutdownGrace)
}

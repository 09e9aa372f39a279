package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ironsheep/image-search-mcp/internal/client"
	"github.com/ironsheep/image-search-mcp/internal/config"
	"github.com/ironsheep/image-search-mcp/internal/httpapi"
	"github.com/ironsheep/image-search-mcp/internal/lines"
	"github.com/ironsheep/image-search-mcp/internal/logger"
	"github.com/ironsheep/image-search-mcp/internal/metrics"
	"github.com/ironsheep/image-search-mcp/internal/server"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd := "mcp"
	var args []string
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("image-search %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "mcp":
		err = runMCP(ctx)
	case "lines":
		err = runLines(ctx, args)
	case "http":
		err = runHTTP(ctx, args)
	case "query":
		err = runQuery(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-search: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("image-search - find a template image inside a scene image")
	fmt.Println()
	fmt.Println("Usage: image-search [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  mcp              MCP server over stdin/stdout (default)")
	fmt.Println("  lines            Line protocol over stdin/stdout: scene, template, threshold")
	fmt.Println("    --canny-line   Expect a fourth true/false canny line per request")
	fmt.Println("  http             HTTP API server")
	fmt.Println("    --addr ADDR    Listen address (default from config, :8080)")
	fmt.Println("  query            Send one search to a running HTTP server")
	fmt.Println("    --server URL   Server base URL (default http://localhost:8080)")
	fmt.Println("    --scene FILE   Scene image")
	fmt.Println("    --template FILE Template image")
	fmt.Println("    --threshold X  Minimum score")
	fmt.Println("    --canny        Match edge maps")
	fmt.Println("  version          Print version information")
	fmt.Println("  help             Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=path    YAML config file (default %s)\n", config.EnvPath, config.DefaultPath)
	fmt.Printf("  %s=debug   Override the log level\n", config.EnvLogLevel)
}

// setup loads configuration and builds the shared service.
func setup(ctx context.Context) (*config.Config, *service.Service, *metrics.Metrics, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		// Defaults are usable; keep going but say why.
		fmt.Fprintf(os.Stderr, "image-search: %v (using defaults)\n", err)
	}
	if err := logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development}); err != nil {
		return nil, nil, nil, err
	}
	log := logger.Log()
	log.Info("starting image-search",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("matcher", cfg.Search.Matcher),
	)

	m := metrics.New()
	go m.StartSampler(ctx, cfg.Metrics.SampleInterval)

	svc, err := service.New(cfg, log, m)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, svc, m, nil
}

// serveMetrics exposes /metrics on its own port for the stdio transports.
func serveMetrics(ctx context.Context, cfg *config.Config, m *metrics.Metrics) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
			logger.Log().Error("metrics server failed", zap.Error(err))
		}
	}()
}

func runMCP(ctx context.Context) error {
	cfg, svc, m, err := setup(ctx)
	if err != nil {
		return err
	}
	serveMetrics(ctx, cfg, m)
	return server.New(svc, logger.Log(), Version).Serve(ctx, os.Stdin, os.Stdout)
}

func runLines(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lines", flag.ExitOnError)
	cannyLine := fs.Bool("canny-line", false, "expect a fourth true/false canny line per request")
	_ = fs.Parse(args)

	cfg, svc, m, err := setup(ctx)
	if err != nil {
		return err
	}
	serveMetrics(ctx, cfg, m)
	return lines.New(svc, logger.Log(), lines.Options{CannyLine: *cannyLine}).Serve(ctx, os.Stdin, os.Stdout)
}

func runHTTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("http", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address")
	_ = fs.Parse(args)

	cfg, svc, m, err := setup(ctx)
	if err != nil {
		return err
	}
	if *addr == "" {
		*addr = cfg.HTTP.Addr
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.New(svc, m, logger.Log()).Run(ctx, *addr)
}

func runQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server base URL")
	scenePath := fs.String("scene", "", "scene image file")
	templatePath := fs.String("template", "", "template image file")
	threshold := fs.Float64("threshold", 0, "minimum score (default from server config)")
	levels := fs.Int("levels", 0, "pyramid levels (default from server config)")
	canny := fs.Bool("canny", false, "match edge maps")
	_ = fs.Parse(args)

	if *scenePath == "" || *templatePath == "" {
		return fmt.Errorf("query needs --scene and --template")
	}
	scene, err := readBase64(*scenePath)
	if err != nil {
		return err
	}
	tmpl, err := readBase64(*templatePath)
	if err != nil {
		return err
	}

	req := httpapi.SearchRequest{Scene: scene, Template: tmpl, Levels: *levels, Canny: *canny}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			req.Threshold = threshold
		}
	})

	resp, err := client.New(*serverURL, 0).Search(ctx, "", req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func readBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

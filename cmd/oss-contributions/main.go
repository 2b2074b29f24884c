package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cam3ron2/oss-contributions/internal/aggregate"
	"github.com/cam3ron2/oss-contributions/internal/app"
	"github.com/cam3ron2/oss-contributions/internal/config"
	"github.com/cam3ron2/oss-contributions/internal/githubapi"
	"github.com/cam3ron2/oss-contributions/internal/metrics"
	"github.com/cam3ron2/oss-contributions/internal/ordering"
	"github.com/cam3ron2/oss-contributions/internal/report"
	"github.com/cam3ron2/oss-contributions/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "oss-contributions: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	cancel()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "oss-contributions: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup config.LookupFunc) error {
	flagSet := flag.NewFlagSet("oss-contributions", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flags := config.BindFlags(flagSet)
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(flagSet.Output(), "Usage: GITHUB_TOKEN=xxxx oss-contributions [OPTIONS] [<USER>...]\nOptions:\n")
		flags.PrintDefaults(flagSet.Output())
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(flags, lookup)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := buildLogger(stderr, cfg.LogLevel).With(zap.String("run_id", runID))
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !shouldIgnoreLoggerSyncError(syncErr) {
			_, _ = fmt.Fprintf(stderr, "oss-contributions: sync logger: %v\n", syncErr)
		}
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      telemetry.DefaultServiceName,
		RunID:            runID,
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
		SpanLogger:       logger.Named("trace"),
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	recorder := metrics.NewRecorder()
	httpClient, err := buildHTTPClient(cfg, recorder)
	if err != nil {
		return fmt.Errorf("build github http client: %w", err)
	}

	graphqlURL := cfg.GitHub.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = githubapi.GraphQLURLForAPIBase(cfg.GitHub.APIBaseURL)
	}
	graphqlClient, err := githubapi.NewGraphQLClient(httpClient, graphqlURL)
	if err != nil {
		return fmt.Errorf("build github graphql client: %w", err)
	}
	contributions, err := githubapi.NewContributionsClient(graphqlClient, githubapi.ContributionsOptions{
		WithIssues: cfg.Issues,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build contributions client: %w", err)
	}
	collector, err := aggregate.NewCollector(contributions, aggregate.CollectorOptions{
		From:            cfg.From,
		To:              cfg.To,
		IncludePrivate:  cfg.IncludePrivate,
		IncludeInactive: cfg.IncludeInactive,
		Logger:          logger,
		Observer:        recorder,
		Tracer:          telemetryRuntime.Tracer("aggregate"),
	})
	if err != nil {
		return fmt.Errorf("build collector: %w", err)
	}

	var members app.MemberSource
	if strings.TrimSpace(cfg.Organization) != "" {
		restClient, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
		if err != nil {
			return fmt.Errorf("build github rest client: %w", err)
		}
		lister, err := githubapi.NewMemberLister(restClient, logger)
		if err != nil {
			return fmt.Errorf("build member lister: %w", err)
		}
		members = lister
	}

	mode := ordering.ParseMode(cfg.Sort)
	for i, dim := range mode.Dimensions {
		if dim == ordering.DimensionUnknown {
			logger.Debug("unknown sort criterion sorts as zero", zap.Int("position", i), zap.String("sort", cfg.Sort))
		}
	}

	runner, err := app.NewRunner(collector, members, recorder, app.Options{
		Users:            cfg.Users,
		Organization:     cfg.Organization,
		ContributionOnly: cfg.ContributionOnly,
		MinStargazers:    cfg.MinStargazers,
		IncludePersonal:  cfg.IncludePersonal,
		Mode:             mode,
	}, logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.Render(stdout, result, report.RenderOptions{
		TemplatePath: cfg.Template,
		Indent:       isTerminal(stdout),
	}); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		logger.Info("wrote metrics textfile", zap.String("path", cfg.Metrics.Textfile))
	}
	return nil
}

func buildHTTPClient(cfg *config.Config, observer githubapi.RequestObserver) (*http.Client, error) {
	transport := githubapi.NewTransport(
		http.DefaultTransport,
		githubapi.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		githubapi.RateLimitPolicy{
			MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
			SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
		},
		observer,
	)

	if cfg.GitHub.UsesApp() {
		return githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.GitHub.AppID,
			InstallationID: cfg.GitHub.InstallationID,
			PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
			Timeout:        cfg.GitHub.RequestTimeout,
			BaseTransport:  transport,
		})
	}
	return githubapi.NewTokenHTTPClient(githubapi.TokenAuthConfig{
		Token:         cfg.GitHub.Token,
		Timeout:       cfg.GitHub.RequestTimeout,
		BaseTransport: transport,
	})
}

func buildLogger(w io.Writer, level string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(logLevel(level)),
	)
	return zap.New(core, zap.AddCaller())
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func shouldIgnoreLoggerSyncError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/telemetry"
	"github.com/tjfontaine/pipegraph/pkg/pipegraph"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pipegraph:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "pipegraph",
		Usage: "Resolve GraphQL fields through data source pipelines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "pipegraph.yaml",
				Usage:   "YAML configuration file (optional)",
				Sources: cli.EnvVars("PIPEGRAPH_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("PIPEGRAPH_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the GraphQL endpoint",
				Action: serve,
			},
			{
				Name:   "invoke",
				Usage:  "Resolve a single field and print the result as JSON",
				Action: invoke,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: "Query", Usage: "parent type name"},
					&cli.StringFlag{Name: "field", Required: true, Usage: "field name"},
					&cli.StringFlag{Name: "args", Value: "{}", Usage: "field arguments as a JSON object"},
				},
			},
			{
				Name:   "fields",
				Usage:  "List the fields that have pipelines",
				Action: fields,
			},
		},
	}
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// setup loads configuration and builds the service. The returned cleanup
// flushes traces.
func setup(ctx context.Context, cmd *cli.Command, logOut io.Writer) (*pipegraph.Service, *slog.Logger, func(), error) {
	logger, err := newLogger(cmd.String("log-level"), logOut)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	tracing, err := telemetry.InitTracer(cfg.Telemetry, os.Stderr, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize tracer: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}

	svc, err := pipegraph.New(ctx,
		pipegraph.WithConfig(cfg),
		pipegraph.WithLogger(logger),
		pipegraph.WithTracerProvider(tracing.Provider),
	)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return svc, logger, cleanup, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	svc, logger, cleanup, err := setup(ctx, cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start()
	}()

	select {
	case err := <-errCh:
		svc.Close()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

func invoke(ctx context.Context, cmd *cli.Command) error {
	args, err := decodeArgs(cmd.String("args"))
	if err != nil {
		return err
	}

	svc, _, cleanup, err := setup(ctx, cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer cleanup()
	defer svc.Close()

	out, err := svc.Dispatcher().Dispatch(ctx, cmd.String("type"), cmd.String("field"), args)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func fields(ctx context.Context, cmd *cli.Command) error {
	svc, _, cleanup, err := setup(ctx, cmd, io.Discard)
	if err != nil {
		return err
	}
	defer cleanup()
	defer svc.Close()

	for _, f := range svc.Dispatcher().Fields() {
		fmt.Fprintln(cmd.Root().Writer, f.String())
	}
	return nil
}

// decodeArgs parses a JSON object of field arguments, keeping numbers as
// json.Number.
func decodeArgs(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("invalid --args: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid --args: trailing data")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

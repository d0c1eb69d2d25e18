package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pilab-dev/cartbuilder/client"
	"github.com/pilab-dev/cartbuilder/config"
	"github.com/pilab-dev/cartbuilder/internal/metrics"
	"github.com/pilab-dev/cartbuilder/log"
	"github.com/pilab-dev/cartbuilder/session"
	"github.com/pilab-dev/cartbuilder/tracing"
	"github.com/pilab-dev/cartbuilder/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	configPath  string
	contextName string
	logLevel    string
	output      string
	trace       bool
	showMetrics bool

	in          *bufio.Reader
	interactive bool
	cfg         *config.File
	logger      log.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	tp          *sdktrace.TracerProvider

	api     *client.Client
	closers []func() error
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{
		in:          bufio.NewReader(os.Stdin),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}

	root := &cobra.Command{
		Use:               config.AppName,
		Short:             "storefrontctl is a command-line client for the storefront API",
		Long:              `Browse the catalog, manage the cart, place orders and, as a seller, manage products and fulfil orders.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", fmt.Sprintf("config file (default is $HOME/.%s/config.yaml)", config.AppName))
	flags.StringVar(&a.contextName, "context", "", "context to use instead of the current one")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.output, "output", "o", "table", "output format: table, json or yaml")
	flags.BoolVar(&a.trace, "trace", false, "print OpenTelemetry spans of API calls to stderr")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print client metrics to stderr when the command finishes")

	root.AddCommand(
		newAuthCmd(a),
		newProductsCmd(a),
		newCartCmd(a),
		newOrdersCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close(root)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.contextName != "" {
		if err := cfg.UseContext(a.contextName); err != nil {
			return err
		}
	}
	a.cfg = cfg

	levelName := a.logLevel
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	a.logger = log.NewZerologAdapterWithWriter(cmd.ErrOrStderr(), level, cfg.LogPretty)

	a.registry = prometheus.NewRegistry()
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if a.trace {
		a.tp, err = tracing.InitTracerProvider(tracing.Config{
			ServiceName: config.AppName,
			Writer:      cmd.ErrOrStderr(),
			Pretty:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	switch a.output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	return nil
}

// client builds the API client of the active context on first use.
func (a *app) client(ctx context.Context, cmd *cobra.Command) (*client.Client, error) {
	if a.api != nil {
		return a.api, nil
	}

	current, err := a.cfg.Current()
	if err != nil {
		return nil, err
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}

	storage, closer, err := openStorage(ctx, current.Storage, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)

	store := session.NewStore(storage,
		session.WithNamespace(current.Name),
		session.WithStoreLogger(a.logger),
		session.WithStoreMetrics(a.metrics),
	)
	stderr := cmd.ErrOrStderr()
	sessions := session.NewManager(store,
		transport.NewHTTPRefresher(current.APIEndpoint, nil),
		session.WithLogger(a.logger),
		session.WithMetrics(a.metrics),
		session.WithNavigator(session.NavigatorFunc(func(context.Context, error) {
			fmt.Fprintf(stderr, "Your session in context %q has expired. Run '%s auth login' to sign in again.\n",
				current.Name, config.AppName)
		})),
	)

	transportOpts := []transport.Option{transport.WithMetrics(a.metrics)}
	if a.tp != nil {
		transportOpts = append(transportOpts, transport.WithTracerProvider(a.tp))
	}
	a.api = client.New(current.APIEndpoint, sessions,
		client.WithLogger(a.logger.With(map[string]interface{}{"context": current.Name})),
		client.WithTransportOptions(transportOpts...),
	)
	return a.api, nil
}

func (a *app) close(cmd *cobra.Command) {
	ctx := context.Background()
	if a.showMetrics && a.registry != nil {
		if families, err := a.registry.Gather(); err == nil {
			for _, mf := range families {
				_, _ = expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf)
			}
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "Failed to close session storage", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
	if a.tp != nil {
		_ = a.tp.Shutdown(ctx)
	}
}

// prompt reads one line from stdin after printing label.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func (a *app) promptPassword(cmd *cobra.Command, label string) (string, error) {
	if !a.interactive {
		return a.prompt(cmd, label)
	}
	fmt.Fprint(cmd.ErrOrStderr(), label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

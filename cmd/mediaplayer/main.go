package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/config"
	"github.com/genricoloni/mediaplayer/internal/controller"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/genricoloni/mediaplayer/internal/engine"
	"github.com/genricoloni/mediaplayer/internal/fetcher"
	"github.com/genricoloni/mediaplayer/internal/processor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var commands = []string{"get-info", "control", "watch", "tui", "art"}

// usageError marks errors caused by invalid invocation
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// cliOptions holds the per-invocation flags that are not configuration
type cliOptions struct {
	command string
	format  string
	player  string
	control controlOptions
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(config.AppName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [%s] [flags]\n\n", config.AppName, strings.Join(commands, "|"))
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)

	volume := fs.Float64("volume", 0, "Set volume level (0.0 to 1.0) (control)")
	position := fs.Int64("position", 0, "Set playback position in seconds (control)")
	action := fs.String("action", "", "Playback action: "+actionList()+" (control)")
	player := fs.String("player", "", "Bus name of the player to target (default: highest priority)")
	format := fs.String("format", "json", "Output format for get-info (json, yaml)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	opts, err := parseOptions(fs, *format, *player)
	if err != nil {
		return fail(stderr, err)
	}
	if fs.Changed("volume") {
		if math.IsNaN(*volume) || *volume < 0 || *volume > 1 {
			return fail(stderr, &domain.InvalidArgumentError{Field: "volume", Message: "must be between 0 and 1"})
		}
		opts.control.volume = volume
	}
	if fs.Changed("position") {
		if *position < 0 {
			return fail(stderr, &domain.InvalidArgumentError{Field: "position", Message: "cannot be negative"})
		}
		if *position > controller.MaxPositionSeconds {
			return fail(stderr, &domain.InvalidArgumentError{Field: "position", Message: "out of range"})
		}
		opts.control.position = position
	}
	if fs.Changed("action") {
		a, err := domain.ParseAction(*action)
		if err != nil {
			return fail(stderr, usageError{err: err})
		}
		opts.control.action = &a
	}
	if opts.command == "control" && opts.control.empty() {
		return fail(stderr, usagef("control requires at least one of --position, --action or --volume"))
	}

	cfg, err := config.Load(viper.New(), fs)
	if err != nil {
		return fail(stderr, usageError{err: err})
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync() //nolint:errcheck

	if opts.command == "watch" {
		return fail(stderr, runWatch(cfg))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.command == "tui" {
		return fail(stderr, runTUI(ctx, cfg))
	}

	return fail(stderr, runOneShot(ctx, cfg, logger, opts, stdout))
}

// parseOptions validates the positional command and output format
func parseOptions(fs *pflag.FlagSet, format, player string) (cliOptions, error) {
	opts := cliOptions{command: "get-info", player: player}

	switch fs.NArg() {
	case 0:
	case 1:
		opts.command = fs.Arg(0)
	default:
		return opts, usagef("too many arguments: %s", strings.Join(fs.Args(), " "))
	}

	if !slices.Contains(commands, opts.command) {
		return opts, usagef("unknown command %q (expected one of %s)", opts.command, strings.Join(commands, ", "))
	}

	format = strings.ToLower(format)
	if format != formatJSON && format != formatYAML {
		return opts, usagef("unknown format %q (expected json or yaml)", format)
	}
	opts.format = format

	return opts, nil
}

// runOneShot connects to the session bus, runs a single command and closes the connection
func runOneShot(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts cliOptions, stdout io.Writer) (err error) {
	client, err := bus.NewSessionClient(cfg.BusTimeout)
	if err != nil {
		return err
	}
	eng := newEngine(logger, client, cfg)
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			logger.Warn("Failed to close bus connection", zap.Error(closeErr))
		}
	}()

	switch opts.command {
	case "control":
		return runControl(ctx, eng, opts.control, opts.player)
	case "art":
		return runArt(ctx, eng,
			fetcher.NewArtFetcher(logger),
			processor.NewCoverProcessor(logger, cfg.Artwork.Size),
			opts.player, cfg.Artwork.Output, stdout)
	default:
		snapshot, err := eng.Snapshot(ctx)
		if err != nil {
			return err
		}
		return writeSnapshot(stdout, snapshot, opts.format)
	}
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// reserved for command output.
func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zc.Encoding = cfg.LogFormat
	if cfg.LogFormat == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newEngine(logger *zap.Logger, client bus.Client, cfg *config.AppConfig) *engine.Engine {
	return engine.NewEngine(logger, client, engine.Options{
		Debounce:       cfg.Debounce,
		ControlTimeout: cfg.ControlTimeout,
	})
}

// fail prints err and maps it to an exit code
func fail(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "%s: %v\n", config.AppName, err)

	var usage usageError
	if errors.As(err, &usage) || errors.Is(err, domain.ErrInvalidArgument) {
		return exitUsage
	}
	return exitFailure
}

func actionList() string {
	names := make([]string, len(domain.Actions))
	for i, a := range domain.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"fyne.io/fyne/v2/app"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"github.com/tartampluch/go-lunar-birthday/internal/engine"
	"github.com/tartampluch/go-lunar-birthday/internal/server"
	"github.com/tartampluch/go-lunar-birthday/internal/ui"
)

// options are the command line settings of one run.
type options struct {
	ShowVersion bool
	Debug       bool

	// LogFile is the log destination besides stdout. Empty selects the user
	// cache dir, config.LogFileStdoutOnly disables the file.
	LogFile string

	// NoReconcile leaves the timers alone at startup.
	NoReconcile bool

	// Port overrides the saved feed port when set.
	Port string
}

// main delegates to runMain so that deferred calls (closing the log file)
// run before os.Exit.
func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain returns config.ExitCodeSuccess or config.ExitCodeError.
func runMain(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return config.ExitCodeSuccess
	}
	if err != nil {
		return config.ExitCodeError
	}

	if opts.ShowVersion {
		printVersion(os.Stdout)
		return config.ExitCodeSuccess
	}

	logCloser := setupLogging(opts, os.Stdout)
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo(opts)

	if err := run(ctx, opts); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// parseFlags reads args into options. Usage and parse errors go to errOut.
func parseFlags(args []string, errOut io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.BoolVar(&opts.ShowVersion, config.FlagVersion, false, config.FlagDescVersion)
	fs.BoolVar(&opts.Debug, config.FlagDebug, false, config.FlagDescDebug)
	fs.StringVar(&opts.LogFile, config.FlagLogFile, "", config.FlagDescLogFile)
	fs.BoolVar(&opts.NoReconcile, config.FlagNoReconcile, false, config.FlagDescNoReconcile)
	fs.StringVar(&opts.Port, config.FlagPort, "", config.FlagDescPort)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run wires the Fyne application and blocks until the tray app quits.
func run(ctx context.Context, opts options) error {
	a := app.NewWithID(config.AppID)
	a.Preferences().SetString(config.PrefLastRun, config.Version)

	stored := a.Preferences().StringWithFallback(config.PrefServerPort, config.DefaultPort)
	if opts.Port != "" {
		stored = opts.Port
	}
	srv := server.NewFeedServer(resolvePort(stored))

	// A nil clock selects the wall clock.
	gui := ui.NewLunarBirthdayApp(a, ctx, srv, engine.NewHTTPFetcher(), nil)
	gui.SkipStartupReconcile = opts.NoReconcile

	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	gui.Run()
	return nil
}

// resolvePort returns the requested feed port, or the default when it is not
// a usable TCP port.
func resolvePort(requested string) string {
	n, err := strconv.Atoi(requested)
	if err != nil || n < config.MinPort || n > config.MaxPort {
		slog.Warn(config.MsgPortInvalid,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyPort, requested)
		return config.DefaultPort
	}
	return requested
}

func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

func logStartupInfo(opts options) {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
		slog.Group(config.LogKeyOptions,
			slog.String(config.LogKeyLevel, logLevel(opts).String()),
			slog.String(config.LogKeyFile, opts.LogFile),
			slog.Bool(config.LogKeyStartup, !opts.NoReconcile),
			slog.String(config.LogKeyPort, opts.Port),
		),
	)
}

func logLevel(opts options) slog.Level {
	if opts.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupLogging installs a JSON slog logger writing to stdout and, unless
// disabled, to the log file. The returned closer is nil when no file is open.
// A log file that cannot be opened is reported on stderr and skipped.
func setupLogging(opts options, stdout io.Writer) io.Closer {
	writers := []io.Writer{stdout}
	var logFile *os.File

	if logPath, err := logFilePath(opts.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, opts.LogFile, err)
	} else if logPath != "" {
		// Truncated on every start so the file never grows unbounded.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level:     logLevel(opts),
		AddSource: opts.Debug,
	})
	slog.SetDefault(slog.New(handler))

	if logFile == nil {
		return nil
	}
	return logFile
}

// logFilePath resolves the -log-file flag: empty means the user cache dir,
// config.LogFileStdoutOnly yields "" (no file).
func logFilePath(flagValue string) (string, error) {
	switch flagValue {
	case config.LogFileStdoutOnly:
		return "", nil
	case "":
		return getLogFilePath()
	default:
		return flagValue, nil
	}
}

// getLogFilePath returns config.LogFileName inside the app's cache directory,
// creating the directory if needed.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}

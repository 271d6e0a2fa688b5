package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFile    string
	envFile    string

	runPair      string
	runLanguage  string
	runPlain     bool
	runOutputDir string
)

var errAborted = errors.New("aborted by user; report generation was abandoned")

var rootCmd = &cobra.Command{
	Use:           "magiceye",
	Short:         "Compare the schema of two databases and report what the target is missing",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compare base and target of a database pair and write a JSON report",
	Args:  cobra.NoArgs,
	RunE:  runCompare,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.Version = versionString()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default: <app dir>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (env MAGICEYE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file (default: <app dir>/magiceye.log while the progress view is shown)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment overrides from this file (default: .env if present)")

	runCmd.Flags().StringVar(&runPair, "pair", "", "database pair to compare (default: default_pair)")
	runCmd.Flags().StringVar(&runLanguage, "language", "", "report language: english or korean (default: current_language)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print plain progress lines instead of the interactive view")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for the report file (default: output_dir)")

	rootCmd.AddCommand(runCmd, initCmd, pairsCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return defaultConfigPath()
}

// openConfig loads the config, pointing at init when there is none yet.
func openConfig() (*Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, path, fmt.Errorf("no config at %s (create one with: %s init)", path, appName)
	}
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func runCompare(cmd *cobra.Command, _ []string) error {
	interactive := !runPlain && isTerminal(os.Stdout) && isTerminal(os.Stdin)

	logger, closeLog, err := commandLogger(interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := loadEnvFile(envFilePath(), envFile != "", logger); err != nil {
		return err
	}

	cfg, _, err := openConfig()
	if err != nil {
		return err
	}
	pair, err := cfg.SelectPair(runPair)
	if err != nil {
		return err
	}
	pair = applyEnvOverrides(pair, os.LookupEnv)

	lang := cfg.Language()
	if runLanguage != "" {
		if lang, err = parseLanguage(runLanguage); err != nil {
			return err
		}
	}
	ignore, err := cfg.IgnoredKinds()
	if err != nil {
		return err
	}
	outputDir := cfg.OutputDir
	if runOutputDir != "" {
		outputDir = runOutputDir
	}

	req := runRequest{
		Pair:      pair,
		Language:  lang,
		Ignore:    ignore,
		OutputDir: outputDir,
		Options: providerOptions{
			MaxConnections: cfg.MaxConnections,
			ConnectTimeout: cfg.ConnectTimeout,
			QueryTimeout:   cfg.QueryTimeout,
		},
	}
	log := logger.WithFields(logrus.Fields{"pair": pair.Name, "engine": pair.DatabaseType})
	log.WithField("language", lang).Info("starting comparison")

	type result struct {
		path string
		err  error
	}
	bus := NewBus(defaultBusBuffer)
	done := make(chan result, 1)
	go func() {
		path, err := generateReport(cmd.Context(), req, bus, log)
		done <- result{path: path, err: err}
	}()

	out := cmd.OutOrStdout()
	if interactive {
		quit, err := runTerminalDisplay(bus, os.Stdin, out)
		if err != nil {
			log.WithError(err).Warn("interactive view unavailable, falling back to plain output")
			runPlainDisplay(bus, out)
		} else if quit {
			log.Warn("progress view closed before the run ended")
			return errAborted
		}
	} else {
		runPlainDisplay(bus, out)
	}

	res := <-done
	if res.err != nil {
		return res.err
	}
	fmt.Fprintf(out, "report written to %s\n", res.path)
	return nil
}

// commandLogger routes logs to stderr, or to a file while the interactive
// view owns the terminal.
func commandLogger(interactive bool) (*logrus.Logger, func(), error) {
	path := logFile
	if path == "" && interactive {
		dir, err := appDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, logFileName)
	}
	if path == "" {
		return setupLogging(logLevel, os.Stderr), func() {}, nil
	}

	f, err := openLogFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return setupLogging(logLevel, f), func() { f.Close() }, nil
}

func envFilePath() string {
	if envFile != "" {
		return envFile
	}
	return ".env"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/netsweep/netsweep/internal/constants"
	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/formatters"
	"github.com/netsweep/netsweep/internal/inventory"
	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/session"
	"github.com/netsweep/netsweep/internal/utils"
	"github.com/netsweep/netsweep/pkg/file"
	"github.com/netsweep/netsweep/pkg/sshclient"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errPartialFailure signals that the batch ran but some devices failed. It
// maps to exit code 2; load and usage errors exit 1.
var errPartialFailure = errors.New("some devices failed")

var (
	configPath    string
	inventoryPath string
	commandsPath  string
	tags          []string

	concurrency int
	batchSize   int

	connectTimeout time.Duration
	commandTimeout time.Duration
	retries        int
	retryDelay     time.Duration
	retryOnError   bool

	username     string
	password     string
	authMethod   string
	keyFile      string
	deviceType   string
	jumpHost     string
	sshConfig    string
	enableSecret string
	knownHosts   string

	outputPath    string
	outputFormat  string
	statsFile     string
	transcriptDir string

	verbose bool
	dryRun  bool

	rootCmd = &cobra.Command{
		Use:           "netsweep",
		Short:         "Execute command batches across network device fleets over SSH",
		Long:          "netsweep connects to many network devices concurrently, runs a fixed command sequence on each one and collects every output into a single report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netsweep %s (commit %s, built %s)\n", version, commit, date)
		},
	}
)

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&configPath, "config", "", "settings file (default ~/.netsweep.yml)")
	flags.StringVarP(&inventoryPath, "inventory", "i", "", "device inventory file, CSV or YAML")
	flags.StringVarP(&commandsPath, "commands", "c", "", "commands file, one command per line")
	flags.StringSliceVar(&tags, "tags", nil, "only run on devices carrying one of these tags")

	flags.IntVarP(&concurrency, "concurrency", "w", constants.DefaultConcurrency, "maximum devices executing at once")
	flags.IntVar(&batchSize, "batch-size", 0, "process devices in chunks of this size, 0 runs everything in one batch")

	flags.DurationVar(&connectTimeout, "timeout", constants.DefaultConnectTimeout, "timeout for establishing a device connection")
	flags.DurationVar(&commandTimeout, "command-timeout", constants.DefaultCommandTimeout, "default timeout for one command execution")
	flags.IntVar(&retries, "retries", constants.DefaultMaxConnectAttempts, "total connect attempts per device")
	flags.DurationVar(&retryDelay, "retry-delay", constants.DefaultRetryDelay, "base delay between connect attempts")
	flags.BoolVar(&retryOnError, "retry-on-error", false, "also retry connect failures that are neither auth nor timeout")

	flags.StringVarP(&username, "username", "u", "", "default username for devices without one")
	flags.StringVarP(&password, "password", "p", "", "default password, or set NETSWEEP_PASSWORD")
	flags.StringVar(&authMethod, "auth", "", "default auth method: password, key or agent")
	flags.StringVarP(&keyFile, "key-file", "k", "", "private key for key auth")
	flags.StringVar(&deviceType, "device-type", "", "default platform for devices without one")
	flags.StringVar(&jumpHost, "jump-host", "", "connect through this jump host")
	flags.StringVar(&sshConfig, "ssh-config", "", "apply per-host overrides from this SSH config file")
	flags.StringVar(&enableSecret, "enable-secret", "", "enter privileged mode after connect, or set NETSWEEP_ENABLE_SECRET")
	flags.StringVar(&knownHosts, "known-hosts", "", "verify device host keys against this file")

	flags.StringVarP(&outputPath, "output", "o", "output.csv", "report destination path")
	flags.StringVarP(&outputFormat, "format", "f", constants.DefaultOutputFormat, "report format: csv, json, yaml or html")
	flags.StringVar(&statsFile, "stats-file", "", "also write batch statistics as JSON to this path")
	flags.StringVar(&transcriptDir, "transcript-dir", "", "write per-device session transcripts to this directory")

	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&dryRun, "dry-run", false, "load and validate inputs without connecting to anything")

	_ = rootCmd.MarkFlagRequired("inventory")
	_ = rootCmd.MarkFlagRequired("commands")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPartialFailure) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger(verbose)
	fileClient := file.NewService()

	cfg, err := loadSettings(fileClient)
	if err != nil {
		return err
	}
	mergeFlags(cmd, cfg)
	if !verbose {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && level != zerolog.NoLevel {
			logger = logger.Level(level)
		}
	}

	formatter, err := formatters.ForName(cfg.Output.Format)
	if err != nil {
		return err
	}
	// Keep the report extension honest when only the format was picked.
	if !cmd.Flags().Changed("output") && cfg.Output.File == "output.csv" {
		cfg.Output.File = "output." + formatter.Extension()
	}

	devices, commands, err := loadInputs(cfg, fileClient, logger)
	if err != nil {
		return err
	}

	if dryRun {
		printPlan(devices, commands)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("Interrupt received, cancelling batch")
		cancel()
	}()

	policy := session.ConnectionPolicy{
		ConnectTimeout: cfg.SSH.ConnectTimeout,
		MaxAttempts:    cfg.SSH.MaxAttempts,
		RetryDelay:     cfg.SSH.RetryDelay,
		MaxRetryDelay:  cfg.SSH.MaxRetryDelay,
		RetryOnError:   cfg.SSH.RetryOnError,
		CommandTimeout: cfg.SSH.CommandTimeout,
		TranscriptDir:  cfg.Output.TranscriptDir,
		KnownHostsFile: cfg.SSH.KnownHostsFile,
		EnableSecret:   cfg.Auth.EnableSecret,
	}
	opts := executor.Options{
		MaxConcurrency: cfg.Execution.Concurrency,
		Policy:         policy,
		Progress:       printProgress,
	}

	runner := executor.NewRunner(sshclient.New(logger), logger)

	var (
		results []models.ExecutionResult
		stats   executor.ExecutionStats
	)
	if cfg.Execution.BatchSize > 0 {
		results, stats, err = runner.RunBatches(ctx, devices, commands, cfg.Execution.BatchSize, opts)
	} else {
		results, stats, err = runner.Run(ctx, devices, commands, opts)
	}
	if err != nil {
		return err
	}

	report, err := formatter.Format(results, &stats)
	if err != nil {
		return fmt.Errorf("failed to render %s report: %w", cfg.Output.Format, err)
	}
	if err := fileClient.WriteFileRaw(cfg.Output.File, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.Output.StatsFile != "" {
		if err := fileClient.WriteJsonFile(cfg.Output.StatsFile, stats); err != nil {
			return fmt.Errorf("failed to write statistics: %w", err)
		}
	}

	printSummary(stats, cfg.Output.File)
	if stats.FailedDevices > 0 {
		return errPartialFailure
	}
	return nil
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func loadSettings(fileClient file.Operations) (*utils.Config, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			path = ".netsweep.yml"
		} else {
			path = filepath.Join(home, ".netsweep.yml")
		}
	}
	return utils.LoadConfig(path, fileClient)
}

// mergeFlags lays explicitly set flags over the loaded settings. Flags the
// user did not touch keep whatever the settings file resolved to.
func mergeFlags(cmd *cobra.Command, cfg *utils.Config) {
	flags := cmd.Flags()

	if flags.Changed("concurrency") {
		cfg.Execution.Concurrency = concurrency
	}
	if flags.Changed("batch-size") {
		cfg.Execution.BatchSize = batchSize
	}
	if flags.Changed("timeout") {
		cfg.SSH.ConnectTimeout = connectTimeout
	}
	if flags.Changed("command-timeout") {
		cfg.SSH.CommandTimeout = commandTimeout
	}
	if flags.Changed("retries") {
		cfg.SSH.MaxAttempts = retries
	}
	if flags.Changed("retry-delay") {
		cfg.SSH.RetryDelay = retryDelay
	}
	if flags.Changed("retry-on-error") {
		cfg.SSH.RetryOnError = retryOnError
	}
	if flags.Changed("known-hosts") {
		cfg.SSH.KnownHostsFile = knownHosts
	}
	if flags.Changed("username") {
		cfg.Auth.Username = username
	}
	if flags.Changed("password") {
		cfg.Auth.Password = password
	}
	if flags.Changed("auth") {
		cfg.Auth.Method = authMethod
	}
	if flags.Changed("key-file") {
		cfg.Auth.KeyFile = keyFile
	}
	if flags.Changed("device-type") {
		cfg.Auth.DeviceType = deviceType
	}
	if flags.Changed("jump-host") {
		cfg.Auth.JumpHost = jumpHost
	}
	if flags.Changed("ssh-config") {
		cfg.Auth.SSHConfig = sshConfig
	}
	if flags.Changed("enable-secret") {
		cfg.Auth.EnableSecret = enableSecret
	}
	if flags.Changed("output") {
		cfg.Output.File = outputPath
	}
	if flags.Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("stats-file") {
		cfg.Output.StatsFile = statsFile
	}
	if flags.Changed("transcript-dir") {
		cfg.Output.TranscriptDir = transcriptDir
	}

	if cfg.Auth.Password == "" {
		cfg.Auth.Password = os.Getenv("NETSWEEP_PASSWORD")
	}
	if cfg.Auth.EnableSecret == "" {
		cfg.Auth.EnableSecret = os.Getenv("NETSWEEP_ENABLE_SECRET")
	}

	cfg.Auth.KeyFile = expandIfSet(cfg.Auth.KeyFile)
	cfg.Auth.SSHConfig = expandIfSet(cfg.Auth.SSHConfig)
	cfg.SSH.KnownHostsFile = expandIfSet(cfg.SSH.KnownHostsFile)
	cfg.Output.TranscriptDir = expandIfSet(cfg.Output.TranscriptDir)
}

func expandIfSet(path string) string {
	if path == "" {
		return ""
	}
	return utils.ExpandPath(path)
}

func loadInputs(cfg *utils.Config, fileClient file.Operations, logger zerolog.Logger) ([]models.Device, []models.Command, error) {
	if deviceType != "" && deviceType != string(models.DeviceTypeGeneric) &&
		models.DeviceTypeFromString(deviceType) == models.DeviceTypeGeneric {
		logger.Warn().Str("device_type", deviceType).Msg("Unrecognized device type, falling back to generic")
	}

	defaults := inventory.Defaults{
		Username:   cfg.Auth.Username,
		Password:   cfg.Auth.Password,
		Auth:       models.AuthMethodFromString(cfg.Auth.Method),
		KeyFile:    cfg.Auth.KeyFile,
		DeviceType: models.DeviceTypeFromString(cfg.Auth.DeviceType),
		JumpHost:   cfg.Auth.JumpHost,
		SSHConfig:  cfg.Auth.SSHConfig,
	}

	devices, err := inventory.LoadDevices(utils.ExpandPath(inventoryPath), defaults, fileClient)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int("devices", len(devices)).Str("inventory", inventoryPath).Msg("Loaded device inventory")

	devices = inventory.FilterByTags(devices, tags)
	if len(devices) == 0 {
		return nil, nil, fmt.Errorf("no devices match tags %v", tags)
	}
	if problems := inventory.ValidateDevices(devices); len(problems) > 0 {
		for _, problem := range problems {
			logger.Error().Msg(problem)
		}
		return nil, nil, fmt.Errorf("inventory validation failed with %d problem(s)", len(problems))
	}

	commands, err := inventory.LoadCommands(utils.ExpandPath(commandsPath), fileClient)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int("commands", len(commands)).Str("file", commandsPath).Msg("Loaded command list")

	return devices, commands, nil
}

func printPlan(devices []models.Device, commands []models.Command) {
	fmt.Printf("Dry run: %d command(s) on %d device(s), %d results expected.\n\n", len(commands), len(devices), len(devices)*len(commands))
	fmt.Println("Devices:")
	for _, d := range devices {
		fmt.Printf("  %-40s %s\n", d.DisplayName(), d.Type)
	}
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %s\n", c.Label())
	}
}

func printProgress(stats executor.ExecutionStats, device models.Device, results []models.ExecutionResult) {
	ok := 0
	for _, r := range results {
		if r.Succeeded() {
			ok++
		}
	}
	marker := "ok"
	if ok != len(results) {
		marker = "FAILED"
	}
	fmt.Printf("[%d/%d] %-40s %s (%d/%d commands)\n",
		stats.CompletedDevices, stats.TotalDevices, device.DisplayName(), marker, ok, len(results))
}

func printSummary(stats executor.ExecutionStats, reportPath string) {
	fmt.Printf("\nDevices:  %d total, %d succeeded, %d failed\n", stats.TotalDevices, stats.SuccessfulDevices, stats.FailedDevices)
	fmt.Printf("Commands: %d total, %d succeeded, %d failed\n", stats.TotalCommands, stats.SuccessfulCommands, stats.FailedCommands)
	fmt.Printf("Elapsed:  %s\n", stats.Duration().Round(time.Millisecond))
	fmt.Printf("Report written to %s\n", reportPath)
}

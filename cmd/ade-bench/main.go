// Package main provides the CLI entry point for ade-bench, a database
// benchmark runner that measures workload durations under system
// instrumentation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtheof04/Ade-Scripts/internal/app/usecase"
	"github.com/mtheof04/Ade-Scripts/internal/domain/connection"
	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
	"github.com/mtheof04/Ade-Scripts/internal/infra/database"
	"github.com/mtheof04/Ade-Scripts/internal/infra/database/repository"
	"github.com/mtheof04/Ade-Scripts/internal/infra/monitor"
	"github.com/mtheof04/Ade-Scripts/internal/infra/power"
	"github.com/mtheof04/Ade-Scripts/internal/infra/report"
	"github.com/mtheof04/Ade-Scripts/internal/infra/tool"
	"github.com/mtheof04/Ade-Scripts/internal/infra/worker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("Benchmark: command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "ade-bench",
		Short: "Database benchmark runner with system instrumentation",
		Long: `ade-bench runs SQL workloads against a database engine, measuring
per-iteration durations under a warm-up phase and a cumulative-time or
minimum-iteration termination rule, with optional perf, pcm, iostat and sar
collectors and management-controller power telemetry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newDetectCmd(logger))
	root.AddCommand(newListCmd(logger))
	root.AddCommand(newReportCmd(logger))

	return root
}

// runFlags carries every run command flag.
type runFlags struct {
	mode string

	// pipe mode
	clientPath string
	clientArgs []string
	database   string

	// driver mode
	engine   string
	host     string
	port     int
	dbName   string
	user     string
	password string

	// ssh tunnel (driver mode)
	sshHost      string
	sshPort      int
	sshUser      string
	sshPassword  string
	sshKeyPath   string
	sshLocalPort int

	// workload
	queryPath   string
	loads       []string
	loadFormat  string
	scaleFactor int

	// run configuration
	targetSeconds int
	minIterations int
	warmupCount   int

	// instrumentation
	monitors  bool
	enginePID int

	// power telemetry
	bmcURL      string
	bmcUser     string
	bmcPassword string
	bmcInsecure bool

	outputDir   string
	historyPath string
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark workload",
		Long: `Run one SQL workload to completion: optional data loads, unmeasured
warm-up repetitions, then measured iterations until the cumulative time target
and minimum iteration count are both satisfied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), logger, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.mode, "mode", "pipe",
		"Worker mode: pipe (console client over stdin/stdout) or driver (database/sql)")
	flags.StringVar(&f.clientPath, "client", "mclient",
		"Console client binary for pipe mode")
	flags.StringSliceVar(&f.clientArgs, "client-arg", nil,
		"Extra argument passed to the console client (repeatable)")
	flags.StringVar(&f.database, "database", "",
		"Database identifier the console client attaches to")
	flags.StringVar(&f.engine, "engine", "",
		"Engine for driver mode: mysql, postgresql, sqlserver, oracle")
	flags.StringVar(&f.host, "host", "localhost", "Engine host for driver mode")
	flags.IntVar(&f.port, "port", 0, "Engine port for driver mode (0 = engine default)")
	flags.StringVar(&f.dbName, "db", "", "Database name for driver mode")
	flags.StringVar(&f.user, "user", "", "Database user for driver mode")
	flags.StringVar(&f.password, "password", "", "Database password for driver mode")
	flags.StringVar(&f.sshHost, "ssh-host", "",
		"SSH host to tunnel the driver connection through")
	flags.IntVar(&f.sshPort, "ssh-port", 22, "SSH port")
	flags.StringVar(&f.sshUser, "ssh-user", "", "SSH user")
	flags.StringVar(&f.sshPassword, "ssh-password", "", "SSH password")
	flags.StringVar(&f.sshKeyPath, "ssh-key", "", "SSH private key path")
	flags.IntVar(&f.sshLocalPort, "ssh-local-port", 0,
		"Local port for the tunnel (0 = ephemeral)")
	flags.StringVar(&f.queryPath, "query", "",
		"Path to the SQL workload file (required)")
	flags.StringSliceVar(&f.loads, "load", nil,
		"Data load as table=path, executed once before warm-up (repeatable)")
	flags.StringVar(&f.loadFormat, "load-format", "tbl",
		"Data file format for loads: tbl, csv, parquet")
	flags.IntVar(&f.scaleFactor, "scale-factor", 0,
		"Scale factor suffix for load paths (0 = none)")
	flags.IntVar(&f.targetSeconds, "target-seconds", 120,
		"Cumulative measured time target in seconds (0 = min iterations only)")
	flags.IntVar(&f.minIterations, "min-iterations", 3,
		"Minimum number of measured iterations")
	flags.IntVar(&f.warmupCount, "warmup", 1,
		"Number of unmeasured warm-up repetitions")
	flags.BoolVar(&f.monitors, "monitors", false,
		"Run perf, pcm-memory, iostat and sar collectors around the measured phase")
	flags.IntVar(&f.enginePID, "engine-pid", 0,
		"Engine process pid for process-level counters in driver mode")
	flags.StringVar(&f.bmcURL, "bmc-url", "",
		"Management controller base URL for power telemetry (e.g. https://10.0.0.100)")
	flags.StringVar(&f.bmcUser, "bmc-user", "", "Management controller user")
	flags.StringVar(&f.bmcPassword, "bmc-password", "", "Management controller password")
	flags.BoolVar(&f.bmcInsecure, "bmc-insecure", true,
		"Skip TLS verification against the management controller")
	flags.StringVar(&f.outputDir, "output-dir", "",
		"Directory for logs, collector files and reports (default ./results/<workload>-<timestamp>)")
	flags.StringVar(&f.historyPath, "history-db", filepath.Join("data", "ade-bench.db"),
		"Path to the run history database")

	cmd.MarkFlagRequired("query")

	return cmd
}

func runBenchmark(ctx context.Context, logger *slog.Logger, f *runFlags) error {
	wl, err := workload.FromFile(f.queryPath)
	if err != nil {
		return fmt.Errorf("read workload: %w", err)
	}

	outputDir := f.outputDir
	if outputDir == "" {
		outputDir = filepath.Join("results",
			fmt.Sprintf("%s-%s", wl.Name, time.Now().Format("20060102-150405")))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	loads, err := parseLoads(f)
	if err != nil {
		return err
	}

	db, err := database.InitializeSQLite(ctx, f.historyPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()
	runRepo := repository.NewSQLiteRunRepository(db)

	resultLog, err := os.Create(filepath.Join(outputDir, "result_log.txt"))
	if err != nil {
		return fmt.Errorf("create result log: %w", err)
	}
	defer resultLog.Close()
	warmupLog, err := os.Create(filepath.Join(outputDir, "warmup_log.txt"))
	if err != nil {
		return fmt.Errorf("create warmup log: %w", err)
	}
	defer warmupLog.Close()

	w, engineLabel, enginePID, cleanup, err := startWorker(ctx, logger, f, resultLog)
	if err != nil {
		return err
	}
	defer cleanup()

	var phaseSpecs []monitor.Spec
	var samplerSpecs func(int) []monitor.Spec
	if f.monitors {
		if _, err := tool.NewDetector().DetectAll(ctx, tool.CollectorTools); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrPreCheckFailed, err)
		}
		phaseSpecs = monitor.PhaseSpecs(enginePID, outputDir)
		samplerSpecs = func(iteration int) []monitor.Spec {
			dir := monitor.IterationDir(outputDir, iteration)
			os.MkdirAll(dir, 0o755)
			return monitor.IterationSpecs(dir)
		}
	}

	controller := usecase.NewController(
		phaseSpecs,
		samplerSpecs,
		func() usecase.Monitors {
			return monitor.NewSet(monitor.NewExecLauncher(), logger, monitor.Options{})
		},
		warmupLog,
		logger,
	)

	var telemetry usecase.PowerTelemetry
	if f.bmcURL != "" {
		client, err := power.NewClient(power.Config{
			BaseURL:            f.bmcURL,
			Username:           f.bmcUser,
			Password:           f.bmcPassword,
			InsecureSkipVerify: f.bmcInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("power telemetry: %w", err)
		}
		telemetry = client
	}

	uc := usecase.NewBenchmarkUseCase(runRepo, controller, telemetry, logger)

	task := &usecase.Task{
		Engine:   engineLabel,
		Workload: wl,
		Loads:    loads,
		Config: run.Config{
			TargetCumulative: time.Duration(f.targetSeconds) * time.Second,
			MinIterations:    f.minIterations,
			WarmupCount:      f.warmupCount,
		},
		OutputDir: outputDir,
	}

	rec, err := uc.Execute(ctx, w, task)
	if err != nil {
		return err
	}

	if err := writeReports(rec, outputDir); err != nil {
		return err
	}

	fmt.Printf("run %s completed: %d iterations, %.3f seconds cumulative\n",
		rec.ID, len(rec.Outcome.Iterations), rec.Outcome.CumulativeSeconds())
	return nil
}

// startWorker starts the requested worker mode and returns it together with
// the engine label, the local engine pid if known, and a cleanup that shuts
// the worker and any tunnel down.
func startWorker(
	ctx context.Context,
	logger *slog.Logger,
	f *runFlags,
	resultLog *os.File,
) (worker.Worker, string, int, func(), error) {
	switch f.mode {
	case "pipe":
		if f.database == "" {
			return nil, "", 0, nil, fmt.Errorf("--database is required in pipe mode")
		}
		pw, err := worker.StartPipe(worker.PipeConfig{
			ClientPath: f.clientPath,
			Args:       f.clientArgs,
			Database:   f.database,
			ResultLog:  resultLog,
		}, logger)
		if err != nil {
			return nil, "", 0, nil, err
		}
		label := filepath.Base(f.clientPath)
		return pw, label, pw.PID(), func() { pw.Shutdown() }, nil

	case "driver":
		if f.engine == "" || f.dbName == "" {
			return nil, "", 0, nil, fmt.Errorf("--engine and --db are required in driver mode")
		}

		host, port := f.host, f.port
		if port == 0 {
			port = defaultEnginePort(connection.EngineType(f.engine))
		}
		var tunnel *connection.Tunnel
		if f.sshHost != "" {
			var err error
			tunnel, err = connection.OpenTunnel(ctx, &connection.TunnelConfig{
				Host:      f.sshHost,
				Port:      f.sshPort,
				Username:  f.sshUser,
				Password:  f.sshPassword,
				KeyPath:   f.sshKeyPath,
				LocalPort: f.sshLocalPort,
			}, f.host, port)
			if err != nil {
				return nil, "", 0, nil, err
			}
			host, port = "127.0.0.1", tunnel.LocalPort()
		}

		conn, err := connection.New(connection.EngineType(f.engine), host, port, f.dbName, f.user, f.password)
		if err != nil {
			if tunnel != nil {
				tunnel.Close()
			}
			return nil, "", 0, nil, err
		}

		sw, err := worker.StartSQL(ctx, conn, resultLog, logger)
		if err != nil {
			if tunnel != nil {
				tunnel.Close()
			}
			return nil, "", 0, nil, err
		}

		cleanup := func() {
			sw.Shutdown()
			if tunnel != nil {
				tunnel.Close()
			}
		}
		return sw, f.engine, f.enginePID, cleanup, nil

	default:
		return nil, "", 0, nil, fmt.Errorf("unknown mode %q: want pipe or driver", f.mode)
	}
}

func defaultEnginePort(engine connection.EngineType) int {
	switch engine {
	case connection.EngineMySQL:
		return 3306
	case connection.EnginePostgreSQL:
		return 5432
	case connection.EngineSQLServer:
		return 1433
	case connection.EngineOracle:
		return 1521
	default:
		return 0
	}
}

func parseLoads(f *runFlags) ([]workload.Workload, error) {
	if len(f.loads) == 0 {
		return nil, nil
	}

	format := workload.FileFormat(f.loadFormat)
	loads := make([]workload.Workload, 0, len(f.loads))
	for _, spec := range f.loads {
		table, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid load %q: want table=path", spec)
		}
		if f.scaleFactor > 0 {
			path = filepath.Join(path, workload.ScaleFactor(f.scaleFactor).String())
		}
		load, err := workload.NewLoad(table, path, format)
		if err != nil {
			return nil, err
		}
		loads = append(loads, load)
	}
	return loads, nil
}

func writeReports(rec *run.Record, outputDir string) error {
	data := report.NewData(rec, report.DefaultConfig(report.FormatMarkdown))

	// Fold parsed collector metrics into the report when the perf and pcm
	// files are present.
	if perf, err := monitor.ParsePerfStatFile(filepath.Join(outputDir, monitor.PerfStatFile)); err == nil {
		data.Perf = perf
	}
	if mem, err := monitor.ParsePCMMemoryFile(filepath.Join(outputDir, monitor.PCMMemoryFile)); err == nil {
		data.Memory = mem
	}

	for _, gen := range []report.Generator{report.NewMarkdownGenerator(), report.NewJSONGenerator()} {
		data.Config.Format = gen.Format()
		rep, err := gen.Generate(data)
		if err != nil {
			return fmt.Errorf("generate %s report: %w", gen.Format(), err)
		}
		path := filepath.Join(outputDir, "report"+gen.Format().FileExtension())
		if err := os.WriteFile(path, rep.Content, 0o644); err != nil {
			return fmt.Errorf("write %s report: %w", gen.Format(), err)
		}
	}
	return nil
}

func newDetectCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect the system instrumentation tools on this host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			detections, err := tool.NewDetector().DetectAll(cmd.Context(), tool.CollectorTools)
			for _, d := range detections {
				if d.Version != "" {
					fmt.Printf("%-12s %s (%s)\n", d.Tool, d.Path, d.Version)
				} else {
					fmt.Printf("%-12s %s\n", d.Tool, d.Path)
				}
			}
			return err
		},
	}
}

func newListCmd(logger *slog.Logger) *cobra.Command {
	var (
		historyPath string
		limit       int
		stateFilter string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded benchmark runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.InitializeSQLite(cmd.Context(), historyPath)
			if err != nil {
				return fmt.Errorf("open history database: %w", err)
			}
			defer db.Close()

			opts := usecase.FindOptions{Limit: limit}
			if stateFilter != "" {
				state := run.State(stateFilter)
				if !state.IsValid() {
					return fmt.Errorf("invalid state filter %q", stateFilter)
				}
				opts.StateFilter = &state
			}

			records, err := repository.NewSQLiteRunRepository(db).FindAll(cmd.Context(), opts)
			if err != nil {
				return err
			}

			for _, rec := range records {
				iterations, cumulative := 0, 0.0
				if rec.Outcome != nil {
					iterations = len(rec.Outcome.Iterations)
					cumulative = rec.Outcome.CumulativeSeconds()
				}
				fmt.Printf("%s  %-10s  %-12s  %-20s  %3d iters  %8.3fs\n",
					rec.ID, rec.State, rec.Engine, rec.Workload, iterations, cumulative)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history-db", filepath.Join("data", "ade-bench.db"),
		"Path to the run history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&stateFilter, "state", "", "Filter by run state")

	return cmd
}

func newReportCmd(logger *slog.Logger) *cobra.Command {
	var (
		historyPath string
		format      string
		outputPath  string
	)

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Regenerate the report for a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.InitializeSQLite(cmd.Context(), historyPath)
			if err != nil {
				return fmt.Errorf("open history database: %w", err)
			}
			defer db.Close()

			rec, err := repository.NewSQLiteRunRepository(db).FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			gen, err := newGenerator(report.Format(format))
			if err != nil {
				return err
			}

			rep, err := gen.Generate(report.NewData(rec, report.DefaultConfig(gen.Format())))
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err = os.Stdout.Write(rep.Content)
				return err
			}
			return os.WriteFile(outputPath, rep.Content, 0o644)
		},
	}

	cmd.Flags().StringVar(&historyPath, "history-db", filepath.Join("data", "ade-bench.db"),
		"Path to the run history database")
	cmd.Flags().StringVar(&format, "format", "markdown", "Report format: markdown or json")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write the report to a file instead of stdout")

	return cmd
}

func newGenerator(format report.Format) (report.Generator, error) {
	switch format {
	case report.FormatMarkdown:
		return report.NewMarkdownGenerator(), nil
	case report.FormatJSON:
		return report.NewJSONGenerator(), nil
	default:
		return nil, fmt.Errorf("invalid report format: %s", format)
	}
}

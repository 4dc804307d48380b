package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/accelschd/pkg/config"
	"github.com/cuemby/accelschd/pkg/csvreport"
	"github.com/cuemby/accelschd/pkg/freqctl"
	"github.com/cuemby/accelschd/pkg/log"
	"github.com/cuemby/accelschd/pkg/metrics"
	"github.com/cuemby/accelschd/pkg/registry"
	"github.com/cuemby/accelschd/pkg/rpc"
	"github.com/cuemby/accelschd/pkg/sched"
	"github.com/cuemby/accelschd/pkg/slicealloc"
	"github.com/cuemby/accelschd/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "accelschd",
	Short: "accelschd - energy- and fairness-aware scheduler for shared accelerator inference",
	Long: `accelschd schedules DNN inference kernels from multiple tenants onto a
single fixed-function accelerator, giving each tenant a weighted fair
share of the device while folding per-tenant power cost into the
per-quantum slice it receives.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("accelschd version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler",
	Long: `Run starts the registry, the frequency-controller worker, and the
scheduler loop.

With --workload, it creates the entities and models the workload file
describes, submits the tasks it specifies, blocks until every submitted
task finishes, writes the CSV report, and exits. Without --workload, it
runs as a long-lived daemon serving /metrics until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("config", "", "Scheduler config YAML (optional; defaults are used if omitted)")
	runCmd.Flags().String("workload", "", "Workload YAML describing entities, models, and tasks to run as a batch")
	runCmd.Flags().String("csv-out", "accelschd-report.csv", "Path to write the finished-task CSV report on shutdown")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	workloadPath, _ := cmd.Flags().GetString("workload")
	csvOut, _ := cmd.Flags().GetString("csv-out")

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	gov := &freqctl.FileGovernor{
		MinFreqPath:     cfg.Governor.MinFreqPath,
		MaxFreqPath:     cfg.Governor.MaxFreqPath,
		CurFreqPath:     cfg.Governor.CurFreqPath,
		AvailFreqsPath:  cfg.Governor.AvailFreqsPath,
		PowerSensorPath: cfg.Governor.PowerSensorPath,
	}
	ctl, err := freqctl.New(gov)
	if err != nil {
		return fmt.Errorf("starting frequency controller: %w", err)
	}

	params := slicealloc.Params{
		TotalQuantum: cfg.Scheduler.TotalQuantum,
		Alpha:        cfg.Scheduler.Alpha,
		Granularity:  cfg.Scheduler.Granularity,
	}
	reg := registry.New(params)
	scheduler := sched.New(reg, ctl)
	handlers := rpc.New(reg)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("freqctl", true, "ready")

	scheduler.Start()
	metrics.RegisterComponent("scheduler", true, "running")
	log.Info("scheduler started")

	var srv *http.Server
	if workloadPath == "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		srv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		log.Logger.Info().Str("addr", cfg.Metrics.ListenAddr).Msg("metrics endpoint listening")
	}

	shutdown := func() {
		scheduler.Stop()
		ctl.Shutdown()
		if srv != nil {
			_ = srv.Close()
		}
	}

	if workloadPath != "" {
		w, err := config.LoadWorkload(workloadPath)
		if err != nil {
			shutdown()
			return err
		}
		if err := runWorkload(context.Background(), handlers, w); err != nil {
			shutdown()
			return err
		}
		shutdown()
		return csvreport.Write(csvOut, reg.Tasks().Finished())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	shutdown()

	if err := csvreport.Write(csvOut, reg.Tasks().Finished()); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	log.Logger.Info().Str("path", csvOut).Msg("CSV report written")
	return nil
}

// runWorkload creates every entity and model the workload describes,
// submits the requested number of tasks against each model, and blocks
// until all of them reach Finished.
func runWorkload(ctx context.Context, h *rpc.Handlers, w config.Workload) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, we := range w.Entities {
		eid, err := h.CreateEntity(ctx, we.Priority)
		if err != nil {
			return fmt.Errorf("creating entity: %w", err)
		}
		for _, wm := range we.Models {
			mid, err := h.LoadModel(ctx, wm.Path, wm.ProfilePath, eid, types.Frequency(wm.Frequency))
			if err != nil {
				return fmt.Errorf("loading model %s: %w", wm.Path, err)
			}
			for i := 0; i < wm.Tasks; i++ {
				wg.Add(1)
				go func(mid types.ModelID) {
					defer wg.Done()
					if _, err := h.Infer(ctx, mid); err != nil {
						recordErr(err)
					}
				}(mid)
			}
		}
	}

	wg.Wait()
	return firstErr
}

// Command ioscale runs one of the three worker-pool variants against a
// synthetic disk-I/O workload and serves its status over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jannes-thesis/scaling-adapter/internal/api"
	"github.com/jannes-thesis/scaling-adapter/internal/config"
	"github.com/jannes-thesis/scaling-adapter/internal/pool"
	"github.com/jannes-thesis/scaling-adapter/internal/promexport"
	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
	"github.com/jannes-thesis/scaling-adapter/internal/traceset"
)

type runOpts struct {
	configPath   string
	variant      string
	listenAddr   string
	metricsAddr  string
	workDir      string
	phase        bool
	attachPIDs   []int
	fixedSize    int
	watermarkMin int
	watermarkMax int
}

func main() {
	var o runOpts

	root := &cobra.Command{
		Use:   "ioscale",
		Short: "Adaptive disk-I/O worker pool controller",
		Long: `ioscale runs a worker pool (adaptive, watermark, or fixed) against a
synthetic disk-I/O workload, scales it according to the configured
variant, and serves its status over HTTP and Prometheus.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	root.Flags().StringVar(&o.configPath, "config", "", "path to a YAML config file (overrides flag defaults, not flags explicitly set)")
	root.Flags().StringVar(&o.variant, "variant", "", "pool variant: adaptive, watermark, or fixed (defaults to config/adaptive)")
	root.Flags().StringVar(&o.listenAddr, "listen", ":8080", "address for the status/history HTTP API")
	root.Flags().StringVar(&o.metricsAddr, "metrics-listen", ":9090", "address for the Prometheus /metrics endpoint")
	root.Flags().StringVar(&o.workDir, "work-dir", "", "directory for synthetic job scratch files (default: a temp dir)")
	root.Flags().BoolVar(&o.phase, "phase", false, "cycle the synthetic workload between bursty and steady phases")
	root.Flags().IntSliceVar(&o.attachPIDs, "attach-pid", nil, "additionally trace this PID and its process tree (adaptive variant only)")
	root.Flags().IntVar(&o.fixedSize, "fixed-size", 0, "worker count for the fixed variant (default: config/5)")
	root.Flags().IntVar(&o.watermarkMin, "watermark-min", 0, "minimum workers for the watermark variant (default: config/1)")
	root.Flags().IntVar(&o.watermarkMax, "watermark-max", 0, "maximum workers for the watermark variant (default: config/10)")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(o runOpts) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.variant != "" {
		cfg.Variant = o.variant
	}
	if o.fixedSize > 0 {
		cfg.FixedSize = o.fixedSize
	}
	if o.watermarkMin > 0 {
		cfg.WatermarkMinSize = o.watermarkMin
	}
	if o.watermarkMax > 0 {
		cfg.WatermarkMaxSize = o.watermarkMax
	}

	workDir, err := ensureWorkDir(o.workDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	var (
		p          pool.Pool
		controller *scaling.Controller
	)

	switch cfg.Variant {
	case "fixed":
		p = pool.NewFixedPool(cfg.FixedSize, logger)
	case "watermark":
		idle := time.Duration(cfg.WatermarkIdleThreshold) * time.Millisecond
		p = pool.NewWatermarkPool(cfg.WatermarkMinSize, cfg.WatermarkMaxSize, idle, logger)
	case "adaptive", "":
		sampler, err := traceset.NewProcSampler(nil, logger)
		if err != nil {
			return fmt.Errorf("adaptive variant requires /proc: %w", err)
		}
		params := cfg.ScalingParameters(scaling.DefaultParameters())
		controller, err = scaling.New(sampler, params, logger)
		if err != nil {
			return fmt.Errorf("create controller: %w", err)
		}
		adaptive := pool.NewAdaptivePool(controller, logger)
		for _, tid := range expandProcessTree(o.attachPIDs) {
			controller.AddTracee(tid)
		}
		p = adaptive
	default:
		return fmt.Errorf("unknown variant %q", cfg.Variant)
	}

	collector := promexport.New(p, controller)
	prometheus.MustRegister(collector)

	router := api.NewRouter(cfg.Variant, p, controller)
	apiServer := &http.Server{Addr: o.listenAddr, Handler: router}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: o.metricsAddr, Handler: metricsMux}

	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "err", err)
		}
	}()
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	stop := make(chan struct{})
	if o.phase {
		go defaultPhaseSchedule().run(p, workDir, stop)
	} else {
		go steadyOnly(p, workDir, 100*time.Millisecond, stop)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	close(stop)
	p.WaitCompletion()
	p.Destroy()
	if controller != nil {
		controller.Close()
	}
	_ = apiServer.Close()
	_ = metricsServer.Close()

	return nil
}

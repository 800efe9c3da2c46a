package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/waitsampler/internal/config"
	"github.com/voluzi/waitsampler/internal/environ"
	"github.com/voluzi/waitsampler/pkg/collector"
	"github.com/voluzi/waitsampler/pkg/dump"
	"github.com/voluzi/waitsampler/pkg/registry"
	"github.com/voluzi/waitsampler/pkg/server"
	"github.com/voluzi/waitsampler/pkg/tracer"
)

var (
	configPath   string
	overridePath string
	host         string
	port         int
	traceStore   string
	createFifo   bool
	dumpPath     string
	demoWorkers  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sampling collector daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config",
		environ.GetString("CONFIG", ""),
		"path to the TOML configuration file",
	)
	runCmd.Flags().StringVar(&overridePath, "config-override",
		environ.GetString("CONFIG_OVERRIDE", ""),
		"optional TOML file merged over the base configuration",
	)
	runCmd.Flags().StringVar(&host, "host",
		environ.GetString("HOST", ""),
		"the host at which this server will be listening to",
	)
	runCmd.Flags().IntVar(&port, "port",
		environ.GetInt("PORT", 0),
		"the port at which this server will be listening to",
	)
	runCmd.Flags().StringVar(&traceStore, "trace-store",
		environ.GetString("TRACE_STORE", ""),
		"file or fifo to watch for query traces",
	)
	runCmd.Flags().BoolVar(&createFifo, "create-fifo",
		environ.GetBool("CREATE_FIFO", false),
		"create the trace store fifo if it does not exist",
	)
	runCmd.Flags().StringVar(&dumpPath, "dump-path",
		environ.GetString("DUMP_PATH", ""),
		"snapshot file loaded at startup and written at shutdown",
	)
	runCmd.Flags().IntVar(&demoWorkers, "demo-workers",
		environ.GetInt("DEMO_WORKERS", 0),
		"number of synthetic workers to attach (for trying things out)",
	)
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath, overridePath)
	if err != nil {
		return err
	}

	// Flags that were set explicitly win over the file.
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("trace-store") {
		cfg.Tracer.Store = traceStore
	}
	if cmd.Flags().Changed("create-fifo") {
		cfg.Tracer.CreateFifo = createFifo
	}
	if cmd.Flags().Changed("dump-path") {
		cfg.Dump.Path = dumpPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	table := registry.New(cfg.Registry.Slots, cfg.Registry.QueryTTL.Duration)
	coll := collector.New(table, collector.WithOptions(cfg.CollectorOptions()))

	if cfg.Dump.Path != "" {
		if err := dump.Load(cfg.Dump.Path, coll); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug("no dump file to restore")
			} else {
				log.Warnf("failed to restore dump: %v", err)
			}
		} else {
			log.WithField("path", cfg.Dump.Path).Info("restored stores from dump")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracer.Store != "" {
		queryTracer, err := tracer.NewQueryTracer(cfg.Tracer.Store, cfg.Tracer.CreateFifo)
		if err != nil {
			return err
		}
		go queryTracer.Start()
		go func() {
			for trace := range queryTracer.Traces {
				if trace.Err != nil {
					log.Errorf("error on trace: %v", trace.Err)
					continue
				}
				if !trace.ApplyTo(table) {
					log.WithField("pid", trace.Pid).Debug("trace for unknown worker dropped")
				}
			}
		}()
		defer func() {
			if err := queryTracer.Stop(); err != nil {
				log.Errorf("failed to stop query tracer: %v", err)
			}
		}()
	}

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func() {
				reloaded, err := config.Load(configPath, overridePath)
				if err != nil {
					log.Errorf("failed to reload config: %v", err)
					return
				}
				coll.Reload(reloaded.CollectorOptions())
			})
			if err != nil && ctx.Err() == nil {
				log.Errorf("error watching config file: %v", err)
			}
		}()
	}

	if demoWorkers > 0 {
		startDemoWorkers(ctx, table, demoWorkers)
	}

	collDone := make(chan error, 1)
	go func() {
		collDone <- coll.Run(ctx)
	}()

	srv := server.New(coll,
		server.WithHost(cfg.Server.Host),
		server.WithPort(cfg.Server.Port),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("received signal: %v", sig)

		coll.Stop()
		if err := <-collDone; err != nil {
			log.Errorf("collector finished with error: %v", err)
		}

		if cfg.Dump.Path != "" {
			if err := dump.Save(cfg.Dump.Path, coll); err != nil {
				log.Errorf("failed to save dump: %v", err)
			} else {
				log.WithField("path", cfg.Dump.Path).Info("saved stores to dump")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Errorf("failed to stop server: %v", err)
		}
	}()

	return srv.Start()
}

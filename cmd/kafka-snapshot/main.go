// cmd/kafka-snapshot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/configloader"
	"github.com/ntulenev/KafkaSnapshot-sub000/common/logger"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/app"
	"github.com/ntulenev/KafkaSnapshot-sub000/internal/config"
)

type cliOptions struct {
	configPath  string
	topics      []string
	printConfig bool
}

// errTopicsFailed makes the process exit with 1 without printing usage.
var errTopicsFailed = errors.New("one or more topics failed")

func bindFlags(fs *pflag.FlagSet, o *cliOptions) {
	fs.StringVar(&o.configPath, "config", "config/config.yaml", "path to config file")
	fs.StringSliceVar(&o.topics, "topic", nil, "load only this configured topic (repeatable)")
	fs.BoolVar(&o.printConfig, "print-config", false, "print the effective configuration and exit")
}

func newRootCommand() *cobra.Command {
	var opts cliOptions
	cmd := &cobra.Command{
		Use:           "kafka-snapshot",
		Short:         "Load a consistent snapshot of Kafka topics and export it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	bindFlags(cmd.Flags(), &opts)
	return cmd
}

func run(ctx context.Context, opts cliOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.printConfig {
		return configloader.PrintConfig(os.Stdout, cfg)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("kafka-snapshot starting",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("sink", cfg.Export.Sink),
	)

	report, err := app.Run(ctx, cfg, app.Options{Topics: opts.topics}, log)
	if err != nil {
		log.Error("kafka-snapshot: setup failed", zap.Error(err))
		return err
	}
	if ctx.Err() != nil {
		log.Info("kafka-snapshot: interrupted", zap.Int("abandoned", len(report.Abandoned)))
	}
	if !report.OK() {
		for _, f := range report.Failed {
			log.Error("topic failed", zap.String("topic", f.Topic), zap.Error(f.Err))
		}
		return errTopicsFailed
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTopicsFailed) {
			fmt.Fprintln(os.Stderr, "kafka-snapshot:", err)
		}
		stop()
		os.Exit(1)
	}
}

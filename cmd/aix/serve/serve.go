// Package servecmder provides the serve command that runs the aix API server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aix/api"
	"github.com/papercomputeco/aix/cmd/aix/settings"
	"github.com/papercomputeco/aix/pkg/aix/executor"
	"github.com/papercomputeco/aix/pkg/config"
	"github.com/papercomputeco/aix/pkg/eventstream"
	"github.com/papercomputeco/aix/pkg/eventstream/kafka"
	"github.com/papercomputeco/aix/pkg/eventstream/nop"
	"github.com/papercomputeco/aix/pkg/eventstream/worker"
)

type serveCommander struct {
	listen          string
	idleTimeout     time.Duration
	requestTimeout  time.Duration
	eventsPublisher string
	kafkaBrokers    string
	kafkaTopic      string

	debug  bool
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagIdleTimeout,
	config.FlagRequestTimeout,
	config.FlagEventsPublisher,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the aix API server.

The server accepts chat generation requests for any supported vendor and
streams normalized particles back as NDJSON. Vendors configured on the
server (config.toml, credentials.toml or the vendor environment variables)
can be used without sending credentials.

Logs go to stderr and, as JSON, to serve.log in the .aix directory.

A generation event is published after every chat generation, either to
nowhere (nop) or to a Kafka topic.

Examples:
  aix serve
  aix serve --listen :9000
  aix serve --events-publisher kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the aix API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings.Load(cmd, serveFlags...)
			if err != nil {
				return err
			}
			resolver, err := settings.Resolver(cmd, cfg)
			if err != nil {
				return err
			}

			log, logFile, err := settings.NewServeLogger(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer logFile.Close()

			cmder.debug = settings.Debug(cmd)
			cmder.logger = log
			return cmder.run(cfg, resolver)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddDurationFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddDurationFlag(cmd, config.Flags, config.FlagRequestTimeout, &cmder.requestTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsPublisher, &cmder.eventsPublisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *serveCommander) run(cfg *config.Config, resolver api.AccessResolver) error {
	idle, err := cfg.Generation.IdleTimeoutDuration()
	if err != nil {
		return fmt.Errorf("parsing idle timeout: %w", err)
	}
	request, err := cfg.Generation.RequestTimeoutDuration()
	if err != nil {
		return fmt.Errorf("parsing request timeout: %w", err)
	}

	exec := executor.New(
		executor.WithIdleTimeout(idle),
		executor.WithRequestTimeout(request),
		executor.WithLogger(c.logger),
	)

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event worker pool: %w", err)
	}
	defer pool.Close()

	server := api.NewServer(
		api.Config{
			ListenAddr: cfg.Server.Listen,
			Debug:      c.debug,
		},
		exec,
		c.logger,
		api.WithAccessResolver(resolver),
		api.WithEventSink(pool),
	)

	c.logger.Info("events configured",
		"publisher", cfg.Events.Publisher,
		"topic", cfg.Events.Topic,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

func newPublisher(cfg config.EventsConfig) (eventstream.Publisher, error) {
	switch cfg.Publisher {
	case config.PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			ClientID: "aix",
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nop.NewPublisher(), nil
	}
}

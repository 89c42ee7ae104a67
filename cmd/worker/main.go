// Command worker runs the background side of BusTicket: delayed booking jobs,
// the schedule status ticker, the seat lock expiry listener and the e-ticket
// mailer fed by ticket.paid events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"busticket/internal/app"
	"busticket/internal/config"
	"busticket/internal/database"
	"busticket/internal/jobs"
	"busticket/internal/kafka"
	"busticket/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type options struct {
	jobs    bool
	status  bool
	expiry  bool
	consume bool
}

func main() {
	var opts options
	flagSet := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.jobs, "jobs", true, "poll delayed hold-expire and payment-reminder jobs")
	flagSet.BoolVar(&opts.status, "schedule-status", true, "move schedules to ONGOING/COMPLETED periodically")
	flagSet.BoolVar(&opts.expiry, "seat-expiry", true, "publish AVAILABLE events for expired seat locks")
	flagSet.BoolVar(&opts.consume, "ticket-mail", true, "e-mail e-tickets for ticket.paid events")
	pollInterval := flagSet.Duration("poll-interval", 0, "delayed job poll interval (default from JOB_POLL_INTERVAL)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	log := logger.NewLogger("worker")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	for _, name := range cfg.InsecureSecrets() {
		log.Warn("CONFIG", name+" is not set, using an insecure default")
	}
	if err := cfg.CheckSecrets(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	if *pollInterval > 0 {
		cfg.Worker.PollInterval = *pollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.OpenBun(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	redisClient, err := database.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	defer redisClient.Close()

	var publisher kafka.Publisher = &kafka.NoopProducer{Logger: log}
	if cfg.Kafka.Enabled {
		publisher = kafka.NewProducer(cfg.Kafka.Brokers, log)
	}
	defer publisher.Close()

	a := app.New(cfg, bunDB, redisClient, publisher, log)

	var wg sync.WaitGroup
	start := func(name string, run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
			log.Info("WORKER", fmt.Sprintf("%s stopped", name))
		}()
	}

	if opts.jobs {
		start("job worker", jobs.NewWorker(a.Queue, a.Bookings, cfg.Worker.PollInterval, log).Run)
	}
	if opts.status {
		start("schedule status runner", jobs.NewStatusRunner(a.Schedules, cfg.Worker.ScheduleStatusInterval, log).Run)
	}
	if opts.expiry {
		listener := &jobs.SeatExpiryListener{
			Client:    redisClient,
			Publisher: publisher,
			Topic:     cfg.Kafka.Topics.SeatStatus,
			Logger:    log,
		}
		start("seat expiry listener", listener.Run)
	}
	if opts.consume && cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketPaid, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		handler := a.TicketPaidHandler()
		start("ticket mail consumer", func(ctx context.Context) { consumer.Start(ctx, handler) })
	}

	log.Info("APP", "Worker started, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, waiting for workers")
	wg.Wait()
	log.Info("APP", "✅ Worker shutdown complete")
}

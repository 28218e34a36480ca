package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"mirror-backend/internal/bootstrap"
	"mirror-backend/internal/queue"
	"mirror-backend/internal/shared/config"
	"mirror-backend/internal/shared/telemetry"
	"mirror-backend/internal/workerproc"
)

const defaultRegion = "us-east-1"

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel)
	defer telemetry.Sync()

	if strings.TrimSpace(cfg.LeadQueueURL) == "" {
		log.Fatal("LEAD_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	consumer := &queue.Consumer{
		API:             sqs.NewFromConfig(awsCfg),
		QueueURL:        cfg.LeadQueueURL,
		Handle:          leadHandler(app.WorkerDeps()),
		Concurrency:     cfg.WorkerConcurrency,
		Visibility:      cfg.WorkerVisibility,
		ShutdownTimeout: cfg.WorkerShutdownTimeout,
	}
	telemetry.Info("worker.started", map[string]any{
		"queue":       cfg.LeadQueueURL,
		"concurrency": cfg.WorkerConcurrency,
		"visibility":  cfg.WorkerVisibility.String(),
	})
	if err := consumer.Run(ctx); err != nil {
		telemetry.Warn("worker.shutdown", map[string]any{"error": err.Error()})
		return
	}
	telemetry.Info("worker.shutdown", nil)
}

// leadHandler acknowledges a delivery once the lead is handled or can never
// be. Store and notifier failures keep the message for redelivery.
func leadHandler(deps workerproc.Deps) queue.Handler {
	return func(ctx context.Context, d queue.Delivery) bool {
		msg, meta, err := workerproc.ParseMessage(d.Body)
		fields := map[string]any{
			"sqs_message_id": d.MessageID,
			"receive_count":  d.ReceiveCount,
			"lead_id":        msg.LeadID,
		}
		if msg.RequestID != "" {
			fields["request_id"] = msg.RequestID
		}
		if err != nil {
			fields["body_len"] = meta.BodyLen
			if meta.BodySHA != "" {
				fields["body_sha256"] = meta.BodySHA
			}
			fields["error"] = err.Error()
			telemetry.Error("worker.lead.unparseable", fields)
			return true
		}

		if lag := msg.Lag(time.Now()); lag > 0 {
			fields["queue_lag_ms"] = lag.Milliseconds()
		}

		outcome, err := workerproc.ProcessLead(ctx, deps, msg)
		if err != nil {
			fields["error"] = err.Error()
			telemetry.Error("worker.lead.failed", fields)
			return workerproc.Unrecoverable(err)
		}
		fields["outcome"] = outcome
		telemetry.Info("worker.lead.completed", fields)
		return true
	}
}

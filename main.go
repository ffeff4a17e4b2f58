// Command knoxharness runs the ingestion verification flow outside go test:
// smoke-gates the environment, publishes an NTDV1 batch to the ingestion
// queue and polls the Knox search API until the batch converges. Exits
// non-zero when any step fails.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"knoxharness/batch"
	"knoxharness/client"
	"knoxharness/config"
	"knoxharness/logger"
	"knoxharness/poll"
	"knoxharness/queue"
	"knoxharness/secrets"
	"knoxharness/seq"
)

const totalMessages = 100

func main() {
	defer logger.Sync()
	log := logger.L()

	if err := config.Validate(); err != nil {
		log.Fatal("configuration invalid", zap.Error(err))
	}

	apiKey, err := resolveAPIKey()
	if err != nil {
		log.Fatal("unable to resolve knox api key", zap.Error(err))
	}
	knox := client.New(config.KnoxEndpoint, apiKey)

	ctx := context.Background()
	group := buildGroup(knox)
	runErr := group.Run(ctx)

	for _, step := range group.Steps() {
		fields := []zap.Field{zap.String("step", step.Name), zap.Stringer("state", step.State())}
		if step.Note() != "" {
			fields = append(fields, zap.String("note", step.Note()))
		}
		if step.Err() != nil {
			fields = append(fields, zap.Error(step.Err()))
		}
		log.Info("step result", fields...)
	}

	if runErr != nil {
		log.Error("ingestion flow failed", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
	log.Info("ingestion flow passed", zap.Int("messages", totalMessages))
}

func buildGroup(knox *client.Client) *seq.Group {
	group := seq.NewGroup("knox ingestion flow")
	var plan *batch.Plan

	group.Add("ingestion queue exists", func(ctx context.Context) error {
		return queue.EnsureTopic(ctx, config.KafkaBroker, config.IngestionTopic)
	})
	group.Add("knox healthcheck", func(ctx context.Context) error {
		return knox.Health(ctx)
	})
	group.Add("alchemy healthcheck", func(ctx context.Context) error {
		return endpointHealthy(ctx, config.AlchemyEndpoint+"/v1/health")
	})
	group.Add("heimdall healthcheck", func(ctx context.Context) error {
		return endpointHealthy(ctx, config.HeimdallEndpoint+"/api/v1/health")
	})
	group.Add("publish ntdv1 messages", func(ctx context.Context) error {
		tmpl, err := batch.LoadTemplate(config.TemplatePath)
		if err != nil {
			return err
		}
		plan, err = batch.Build(tmpl, config.OrganizationID, batch.NewBatchID(), totalMessages)
		if err != nil {
			return err
		}
		validator := batch.NewMessageValidator("schema/ntdv1.schema.json")
		if err := validator.ValidatePlan(plan); err != nil {
			return err
		}
		entries, err := plan.Entries()
		if err != nil {
			return err
		}
		channel := queue.NewKafkaChannel(config.KafkaBroker, config.IngestionTopic)
		if err := queue.Publish(ctx, channel, entries); err != nil {
			return err
		}
		plan.MarkSent()
		return nil
	})
	group.Add("search returns published transactions", func(ctx context.Context) error {
		if plan == nil || !plan.Sent() {
			return fmt.Errorf("batch must be published before polling knox")
		}
		records, err := poll.New(knox).Wait(ctx, poll.Query{
			OrganizationID: plan.OrganizationID,
			BatchID:        plan.BatchID,
			ExpectedIDs:    plan.TransactionIDs,
		})
		if err != nil {
			return err
		}
		if missing := poll.MissingIDs(plan.TransactionIDs, records); len(missing) > 0 {
			return fmt.Errorf("batch %s for organization %s is missing transactions: %v",
				plan.BatchID, plan.OrganizationID, missing)
		}
		return nil
	})

	return group
}

// endpointHealthy is the binary readiness gate used for services the harness
// only needs reachable, not inspected.
func endpointHealthy(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check %s returned %d", url, resp.StatusCode)
	}
	return nil
}

func resolveAPIKey() (string, error) {
	if config.Local() {
		return config.GetEnv("KNOX_API_KEY", "local-dev-key"), nil
	}
	return secrets.Resolve("KNOX_API_KEY")
}

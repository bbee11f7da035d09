package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/platformsec/tagsentry/config"
	"github.com/platformsec/tagsentry/notify"
	"github.com/platformsec/tagsentry/orchestrator"
	awsprovider "github.com/platformsec/tagsentry/providers/aws"
	"github.com/platformsec/tagsentry/rules"
	"github.com/platformsec/tagsentry/store"
)

// pipelineOptions controls which optional collaborators get wired in.
// Single-shot checks skip notification unless asked; serve mode wires
// everything.
type pipelineOptions struct {
	notify  bool
	persist bool
}

type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	store        *store.VerdictStore
}

func (p *pipeline) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions) (*pipeline, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	source, err := buildRuleSource(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Rules:   source,
		Fetcher: awsprovider.NewTagFetcherFromConfig(awsCfg),
	}

	p := &pipeline{}

	if opts.notify {
		if cfg.Notify.SNSEnabled {
			deps.Notifiers = append(deps.Notifiers,
				notify.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.Notify.SNSTopicARN))
		}
		if cfg.Notify.LarkEnabled {
			deps.Notifiers = append(deps.Notifiers,
				notify.NewLarkNotifier(secretsmanager.NewFromConfig(awsCfg), cfg.Notify.LarkSecretName))
		}
	}

	if opts.persist {
		if err := os.MkdirAll(cfg.StoragePath, 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
		verdicts, err := store.Open(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		p.store = verdicts
		deps.Recorder = verdicts
	}

	p.orchestrator = orchestrator.New(deps)
	return p, nil
}

func buildRuleSource(cfg *config.Config, awsCfg aws.Config) (rules.Source, error) {
	if cfg.RulesFile != "" {
		return rules.LoadStaticSource(cfg.RulesFile)
	}
	return rules.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.RulesTable), nil
}

func buildSQSClient(ctx context.Context, cfg *config.Config) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

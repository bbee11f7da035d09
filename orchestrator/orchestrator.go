// Package orchestrator runs the tag compliance pipeline for one change
// event: classify, fetch tags and rules, evaluate, then notify and record.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/platformsec/tagsentry/classifier"
	"github.com/platformsec/tagsentry/compliance"
	"github.com/platformsec/tagsentry/notify"
	"github.com/platformsec/tagsentry/rules"
	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

// Status describes how processing of one event ended.
type Status string

const (
	// StatusCompleted means a compliance verdict was produced.
	StatusCompleted Status = "completed"
	// StatusNotApplicable means the event is not a supported resource creation.
	StatusNotApplicable Status = "not_applicable"
	// StatusSkipped means the event was recognized but flagged as not needing
	// a check, such as standalone tagging calls.
	StatusSkipped Status = "skipped"
	// StatusError means a collaborator failed before a verdict was reached.
	StatusError Status = "error"
)

// Outcome is the result of processing one change event.
type Outcome struct {
	Status     Status
	Descriptor *types.ResourceDescriptor
	Result     *types.ComplianceResult
	Err        error
}

// TagFetcher retrieves the live tags of a resource when the event itself
// carried none.
type TagFetcher interface {
	FetchTags(ctx context.Context, desc types.ResourceDescriptor) ([]types.Tag, error)
}

// VerdictRecorder persists completed verdicts.
type VerdictRecorder interface {
	Record(desc types.ResourceDescriptor, result types.ComplianceResult) (int64, error)
}

// Deps are the collaborators the orchestrator drives. Fetcher, Notifiers
// and Recorder are optional; Rules is required.
type Deps struct {
	Rules     rules.Source
	Fetcher   TagFetcher
	Notifiers []notify.Notifier
	Recorder  VerdictRecorder
}

// Orchestrator wires the classifier and evaluator to their collaborators.
type Orchestrator struct {
	classifier *classifier.Classifier
	deps       Deps
	logger     *telemetry.Logger
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		classifier: classifier.New(),
		deps:       deps,
		logger:     telemetry.NewLogger("orchestrator"),
	}
}

// Process runs the pipeline for one event. Collaborator failures never
// panic and never produce a partial verdict; they end in StatusError with
// the cause in Err.
func (o *Orchestrator) Process(ctx context.Context, event types.ChangeEvent) Outcome {
	ctx, span := telemetry.Tracer.Start(ctx, "orchestrator.process",
		trace.WithAttributes(
			attribute.String("event.source", event.Source),
			attribute.String("event.action", event.Action),
		))
	defer span.End()

	start := time.Now()

	desc, ok := o.classifier.Classify(event)
	if !ok {
		telemetry.EventsSkipped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", "not_applicable")))
		return Outcome{Status: StatusNotApplicable}
	}
	telemetry.EventsClassified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_type", desc.ResourceType)))

	if desc.SkipCheck {
		telemetry.EventsSkipped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", "skip_check")))
		o.logger.WithContext(ctx).Debug().
			Str("resource_type", desc.ResourceType).
			Msg("event flagged skip-check")
		return Outcome{Status: StatusSkipped, Descriptor: &desc}
	}

	tags, err := o.resolveTags(ctx, desc)
	if err != nil {
		o.logger.LogCollaboratorError(ctx, "fetch_tags", err)
		return Outcome{Status: StatusError, Descriptor: &desc, Err: err}
	}

	ruleList, err := o.deps.Rules.Fetch(ctx, desc.ResourceType)
	if err != nil {
		o.logger.LogCollaboratorError(ctx, "fetch_rules", err)
		return Outcome{Status: StatusError, Descriptor: &desc, Err: err}
	}

	result := compliance.Evaluate(tags, ruleList, desc.ResourceType)

	telemetry.ChecksCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_type", desc.ResourceType),
		attribute.Bool("compliant", result.Compliant)))
	telemetry.CheckDuration.Record(ctx, time.Since(start).Seconds())

	o.record(ctx, desc, result)

	if !result.Compliant {
		telemetry.ViolationsFound.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource_type", desc.ResourceType)))
		o.dispatch(ctx, desc, result)
	}

	o.logger.LogVerdict(ctx, desc.ResourceType, desc.ResourceIDs, result.Compliant, result.FailedCount())

	return Outcome{Status: StatusCompleted, Descriptor: &desc, Result: &result}
}

// resolveTags prefers the tags carried by the event and falls back to a
// live lookup, so resources created without inline tags still get checked.
func (o *Orchestrator) resolveTags(ctx context.Context, desc types.ResourceDescriptor) ([]types.Tag, error) {
	if len(desc.Tags) > 0 || o.deps.Fetcher == nil {
		return desc.Tags, nil
	}
	return o.deps.Fetcher.FetchTags(ctx, desc)
}

func (o *Orchestrator) record(ctx context.Context, desc types.ResourceDescriptor, result types.ComplianceResult) {
	if o.deps.Recorder == nil {
		return
	}
	if _, err := o.deps.Recorder.Record(desc, result); err != nil {
		// a lost verdict record must not block notification
		o.logger.LogCollaboratorError(ctx, "record_verdict", err)
	}
}

// dispatch fans the violation out to every channel. One channel failing
// does not stop the others.
func (o *Orchestrator) dispatch(ctx context.Context, desc types.ResourceDescriptor, result types.ComplianceResult) {
	violation := notify.NewViolation(desc, result)
	for _, notifier := range o.deps.Notifiers {
		if err := notifier.Notify(ctx, violation); err != nil {
			o.logger.LogCollaboratorError(ctx, "notify_"+notifier.Name(), err)
			continue
		}
		telemetry.NotificationsSent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", notifier.Name())))
	}
}

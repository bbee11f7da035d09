// Package classifier maps CloudTrail change events to resource descriptors.
// Classification is total: unsupported or malformed events yield "no match",
// never an error, so an upstream pipeline can always proceed.
package classifier

import (
	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

// actionKey identifies one supported API call.
type actionKey struct {
	Source string
	Action string
}

// extractFunc pulls descriptor fields out of one action's payload shape.
// Returning false means the payload lacked the expected identifier.
type extractFunc func(event types.ChangeEvent) (types.ResourceDescriptor, bool)

// Classifier dispatches events to per-action extractors.
type Classifier struct {
	registry map[actionKey]extractFunc
	logger   *telemetry.Logger
}

// New creates a classifier with all supported actions registered.
func New() *Classifier {
	c := &Classifier{
		registry: make(map[actionKey]extractFunc),
		logger:   telemetry.NewLogger("classifier"),
	}
	c.registerDefaults()
	return c
}

func (c *Classifier) register(source, action string, fn extractFunc) {
	c.registry[actionKey{Source: source, Action: action}] = fn
}

func (c *Classifier) registerDefaults() {
	c.register("ec2.amazonaws.com", "RunInstances", extractRunInstances)
	c.register("ec2.amazonaws.com", "CreateVolume", extractCreateVolume)
	c.register("ec2.amazonaws.com", "AllocateAddress", extractAllocateAddress)
	c.register("ec2.amazonaws.com", "CreateVpc", extractCreateVpc)
	c.register("ec2.amazonaws.com", "CreateSubnet", extractCreateSubnet)
	c.register("ec2.amazonaws.com", "CreateSecurityGroup", extractCreateSecurityGroup)
	c.register("s3.amazonaws.com", "CreateBucket", extractCreateBucket)
	c.register("s3.amazonaws.com", "PutBucketTagging", extractPutBucketTagging)
	c.register("rds.amazonaws.com", "CreateDBInstance", extractCreateDBInstance)
	c.register("rds.amazonaws.com", "CreateDBCluster", extractCreateDBCluster)
	c.register("lambda.amazonaws.com", "CreateFunction20150331", extractCreateFunction)
	c.register("elasticloadbalancing.amazonaws.com", "CreateLoadBalancer", extractCreateLoadBalancer)
	c.register("autoscaling.amazonaws.com", "CreateAutoScalingGroup", extractCreateAutoScalingGroup)
}

// Supported reports whether a (source, action) pair has an extractor.
func (c *Classifier) Supported(source, action string) bool {
	_, ok := c.registry[actionKey{Source: source, Action: action}]
	return ok
}

// Classify maps a change event to a resource descriptor. The second return
// is false when the event is not actionable: unknown (source, action) pair
// or a matched action whose payload lacks the expected identifier.
func (c *Classifier) Classify(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	extract, ok := c.registry[actionKey{Source: event.Source, Action: event.Action}]
	if !ok {
		c.logger.Debug().
			Str("event_source", event.Source).
			Str("event_name", event.Action).
			Msg("unsupported event, skipping")
		return types.ResourceDescriptor{}, false
	}

	desc, ok := extract(event)
	if !ok {
		c.logger.Debug().
			Str("event_source", event.Source).
			Str("event_name", event.Action).
			Msg("matched event missing resource identifier, skipping")
		return types.ResourceDescriptor{}, false
	}

	c.logger.Info().
		Str("resource_type", desc.ResourceType).
		Strs("resource_ids", desc.ResourceIDs).
		Bool("skip_check", desc.SkipCheck).
		Msg("event classified")

	return desc, true
}

// envelope builds the descriptor fields shared by every extractor.
func envelope(event types.ChangeEvent) types.ResourceDescriptor {
	return types.ResourceDescriptor{
		Tags:        []types.Tag{},
		Region:      event.Region,
		AccountID:   event.AccountID,
		EventName:   event.Action,
		EventSource: event.Source,
		EventTime:   event.EventTime,
		Creator:     event.Creator,
	}
}

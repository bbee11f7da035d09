package classifier

import (
	"github.com/platformsec/tagsentry/normalizer"
	"github.com/platformsec/tagsentry/types"
)

// Payload probing helpers. CloudTrail payload shapes vary per action and are
// not contractually stable, so every field access is defensive.

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func getList(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// extractRunInstances handles batch instance creation. All instance IDs are
// collected; tags are read from the first instance only, matching how the
// creating call applies one tag specification to the whole batch.
func extractRunInstances(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	items := getList(getMap(event.ResponseElements, "instancesSet"), "items")
	if len(items) == 0 {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:instance"
	for _, item := range items {
		instance, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id := getString(instance, "instanceId"); id != "" {
			desc.ResourceIDs = append(desc.ResourceIDs, id)
		}
	}
	if len(desc.ResourceIDs) == 0 {
		return types.ResourceDescriptor{}, false
	}

	if first, ok := items[0].(map[string]any); ok {
		desc.Tags = normalizer.NormalizeTagSet(first)
	}
	return desc, true
}

func extractCreateVolume(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	id := getString(event.ResponseElements, "volumeId")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:volume"
	desc.ResourceIDs = []string{id}
	desc.Tags = normalizer.NormalizeTagSet(event.ResponseElements)
	return desc, true
}

// AllocateAddress responses carry no tag information; live tags must be
// fetched before evaluation.
func extractAllocateAddress(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	id := getString(event.ResponseElements, "allocationId")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:eip"
	desc.ResourceIDs = []string{id}
	return desc, true
}

func extractCreateVpc(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	vpc := getMap(event.ResponseElements, "vpc")
	id := getString(vpc, "vpcId")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:vpc"
	desc.ResourceIDs = []string{id}
	desc.Tags = normalizer.NormalizeTagSet(vpc)
	return desc, true
}

func extractCreateSubnet(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	subnet := getMap(event.ResponseElements, "subnet")
	id := getString(subnet, "subnetId")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:subnet"
	desc.ResourceIDs = []string{id}
	desc.Tags = normalizer.NormalizeTagSet(subnet)
	return desc, true
}

func extractCreateSecurityGroup(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	id := getString(event.ResponseElements, "groupId")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "ec2:security-group"
	desc.ResourceIDs = []string{id}
	return desc, true
}

// CreateBucket has no useful response elements; the bucket name lives in the
// request parameters.
func extractCreateBucket(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	name := getString(event.RequestParameters, "bucketName")
	if name == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "s3:bucket"
	desc.ResourceIDs = []string{name}
	return desc, true
}

// extractPutBucketTagging marks the event skip-check: the bucket already
// exists, so its compliance is governed by its creation event, not by this
// tag mutation.
func extractPutBucketTagging(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	name := getString(event.RequestParameters, "bucketName")
	if name == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "s3:bucket"
	desc.ResourceIDs = []string{name}
	desc.SkipCheck = true
	return desc, true
}

func extractCreateDBInstance(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	db := getMap(event.ResponseElements, "dBInstance")
	id := getString(db, "dBInstanceIdentifier")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "rds:db"
	desc.ResourceIDs = []string{id}
	desc.ResourceARN = getString(db, "dBInstanceArn")
	desc.Tags = normalizer.Normalize(db["tagList"])
	return desc, true
}

func extractCreateDBCluster(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	cluster := getMap(event.ResponseElements, "dBCluster")
	id := getString(cluster, "dBClusterIdentifier")
	if id == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "rds:cluster"
	desc.ResourceIDs = []string{id}
	desc.ResourceARN = getString(cluster, "dBClusterArn")
	desc.Tags = normalizer.Normalize(cluster["tagList"])
	return desc, true
}

func extractCreateFunction(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	name := getString(event.ResponseElements, "functionName")
	if name == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "lambda:function"
	desc.ResourceIDs = []string{name}
	desc.ResourceARN = getString(event.ResponseElements, "functionArn")
	desc.Tags = normalizer.Normalize(event.ResponseElements["tags"])
	return desc, true
}

// extractCreateLoadBalancer handles batch creation; the ARN of the first
// load balancer is kept for live tag lookups.
func extractCreateLoadBalancer(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	lbs := getList(event.ResponseElements, "loadBalancers")
	if len(lbs) == 0 {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "elb:loadbalancer"
	for _, item := range lbs {
		lb, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name := getString(lb, "loadBalancerName"); name != "" {
			desc.ResourceIDs = append(desc.ResourceIDs, name)
		}
	}
	if len(desc.ResourceIDs) == 0 {
		return types.ResourceDescriptor{}, false
	}

	if first, ok := lbs[0].(map[string]any); ok {
		desc.ResourceARN = getString(first, "loadBalancerArn")
	}
	return desc, true
}

// CreateAutoScalingGroup returns nothing useful; both the group name and the
// tags come from the request parameters.
func extractCreateAutoScalingGroup(event types.ChangeEvent) (types.ResourceDescriptor, bool) {
	name := getString(event.RequestParameters, "autoScalingGroupName")
	if name == "" {
		return types.ResourceDescriptor{}, false
	}

	desc := envelope(event)
	desc.ResourceType = "autoscaling:group"
	desc.ResourceIDs = []string{name}
	desc.Tags = normalizer.Normalize(event.RequestParameters["tags"])
	return desc, true
}

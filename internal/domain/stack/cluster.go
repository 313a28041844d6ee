// Where: internal/domain/stack/cluster.go
// What: ECS cluster bound to the network.
// Why: Step 2; the event target launches tasks into this cluster.
package stack

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ecs"
	"github.com/awslabs/goformation/v7/cloudformation/tags"
)

func (b *builder) cluster() error {
	cluster := &ecs.Cluster{
		Tags: append(b.nameTag(ClusterID), tags.Tag{Key: TagNetwork, Value: cloudformation.Ref(VpcID)}),
	}
	if b.opts.Cluster.Name != "" {
		cluster.ClusterName = cloudformation.String(b.opts.Cluster.Name)
	}
	return b.tpl.Declare(ClusterID, cluster)
}

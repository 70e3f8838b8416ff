package amqp

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	pubsubadapter "github.com/riverpatch/uistream/internal/adapter/pubsub"
)

// ActionTopicV1 is the routing key another internal service publishes
// actions under; RegisterHandlers binds it to a per-node queue so a
// fan-out exchange still delivers every action to every running instance.
const ActionTopicV1 = "genui.actions.v1"

// RegisterHandlers wires the ingress subscriber onto router. Each instance
// gets its own queue off the shared exchange, so horizontal scaling never
// drops an action on the floor.
func RegisterHandlers(router *message.Router, subProvider *pubsubadapter.SubscriberProvider, h *IngressHandler, exchange, baseQueue string) error {
	nodeID, err := os.Hostname()
	if err != nil {
		nodeID = watermill.NewShortUUID()
	}
	queue := fmt.Sprintf("%s.%s", baseQueue, nodeID)

	sub, err := subProvider.Build(queue, exchange)
	if err != nil {
		return fmt.Errorf("amqp: build subscriber for queue %s: %w", queue, err)
	}

	router.AddNoPublisherHandler(
		queue+"_executor",
		ActionTopicV1,
		sub,
		Bind(h, h.OnActionV1),
	)
	return nil
}

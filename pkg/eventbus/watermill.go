package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// WatermillEventBus adapts a watermill publisher/subscriber pair to the
// EventBus contract.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

// NewWatermillEventBus wraps the given watermill pair.
func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		tracer:        noop.NewTracerProvider().Tracer("eventbus"),
	}
}

// SetTracer enables span creation for consumed events. Without it the bus
// uses a no-op tracer.
func (eb *WatermillEventBus) SetTracer(tracer trace.Tracer) {
	eb.tracer = tracer
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.consume(ctx, msg)
		}
	}()

	return nil
}

// consume dispatches one message to its registered handler under a span.
func (eb *WatermillEventBus) consume(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	spanCtx, span := otelhelper.StartSpan(ctx, eb.tracer, "eventbus consume",
		attribute.String(otelhelper.ConversationIDKey, msg.Metadata.Get(events.EventMetadataKey)),
		attribute.String("event.type", string(eventType)),
	)
	defer span.End()

	handler, exists := eb.subscriptions[eventType]
	if !exists {
		msg.Ack()

		return
	}

	event := decodeEvent(eventType)
	if event == nil {
		msg.Ack()

		return
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	if err := handler(spanCtx, event); err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	span.AddEvent("event_handled")
	msg.Ack()
}

func decodeEvent(eventType events.EventType) any {
	switch eventType {
	case events.WorkflowStepAdvancedEvent:
		return &events.WorkflowStepAdvanced{}
	case events.WorkflowCompletedEvent:
		return &events.WorkflowCompleted{}
	case events.WorkflowResetEvent:
		return &events.WorkflowReset{}
	case events.MeetingCreatedEvent:
		return &events.MeetingCreated{}
	case events.EmailJobStartedEvent:
		return &events.EmailJobStarted{}
	case events.EmailJobCompletedEvent:
		return &events.EmailJobCompleted{}
	case events.EmailJobCancelledEvent:
		return &events.EmailJobCancelled{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

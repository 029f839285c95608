// internal/infra/queue/jetstream.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainQueue "birthday_notification_service/internal/domain/queue"
	"birthday_notification_service/internal/infra/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName   = "BIRTHDAY"
	QueueSubject = "birthday.greetings.queue"
	DeadSubject  = "birthday.greetings.dead"
	ConsumerName = "greetings-worker"

	// ackWait must exceed the notifier timeout so a live worker never loses
	// a message it is still sending.
	ackWait = 60 * time.Second

	// fetchMaxWait bounds one poll of the pull consumer.
	fetchMaxWait = 2 * time.Second
)

// Connect establishes the NATS connection used for the greetings queue.
func Connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	return nc, js, nil
}

// Setup creates the greetings stream and its durable worker consumer.
// Dead-lettered payloads live on their own subject in the same stream and
// stay there until an operator consumes them.
func Setup(ctx context.Context, js jetstream.JetStream) (jetstream.Consumer, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{QueueSubject, DeadSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		Discard:   jetstream.DiscardOld,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stream %s: %w", StreamName, err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: QueueSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    -1, // Attempts are budgeted by the ledger, not the broker
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating consumer %s: %w", ConsumerName, err)
	}
	return consumer, nil
}

// JetStreamQueue is the durable greetings queue on NATS JetStream. It
// implements both the producer and consumer sides of the domain queue
// contract.
type JetStreamQueue struct {
	js       jetstream.JetStream
	consumer jetstream.Consumer
}

func NewJetStreamQueue(ctx context.Context, js jetstream.JetStream) (*JetStreamQueue, error) {
	consumer, err := Setup(ctx, js)
	if err != nil {
		return nil, err
	}
	return &JetStreamQueue{js: js, consumer: consumer}, nil
}

// Enqueue publishes one message onto the queue subject.
func (q *JetStreamQueue) Enqueue(ctx context.Context, msg domainQueue.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding queue message for delivery %s: %w", msg.DeliveryID, err)
	}
	if _, err := q.js.Publish(ctx, QueueSubject, data); err != nil {
		return fmt.Errorf("publishing delivery %s to %s: %w", msg.DeliveryID, QueueSubject, err)
	}
	return nil
}

// Fetch pulls up to max queue entries. A poll timeout yields an empty batch,
// not an error. Entries whose payload does not decode are terminated on the
// spot: redelivering bytes that can never decode is pointless.
func (q *JetStreamQueue) Fetch(ctx context.Context, max int) ([]domainQueue.Delivery, error) {
	msgs, err := q.consumer.Fetch(max, jetstream.FetchMaxWait(fetchMaxWait))
	if err != nil {
		// Timeout or no messages is not an error
		return nil, nil
	}

	deliveries := make([]domainQueue.Delivery, 0, max)
	for msg := range msgs.Messages() {
		var payload domainQueue.Message
		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			logger.Log.Warnf("Terminating malformed queue entry on %s: %v", QueueSubject, err)
			_ = msg.Term()
			continue
		}
		deliveries = append(deliveries, &jsDelivery{js: q.js, msg: msg, payload: payload})
	}
	return deliveries, nil
}

// jsDelivery is one in-flight queue entry.
type jsDelivery struct {
	js      jetstream.JetStream
	msg     jetstream.Msg
	payload domainQueue.Message
}

func (d *jsDelivery) Message() domainQueue.Message {
	return d.payload
}

func (d *jsDelivery) Ack() error {
	return d.msg.Ack()
}

// Retry schedules redelivery of the entry after the given delay. The broker
// holds the message back for the delay, which is how backoff between send
// attempts is enforced.
func (d *jsDelivery) Retry(delay time.Duration) error {
	if delay <= 0 {
		return d.msg.Nak()
	}
	return d.msg.NakWithDelay(delay)
}

// DeadLetter moves the payload to the dead subject and acknowledges the
// original entry so the queue side stops retrying. The delivery record keeps
// the authoritative FAILED state alongside.
func (d *jsDelivery) DeadLetter(ctx context.Context) error {
	if _, err := d.js.Publish(ctx, DeadSubject, d.msg.Data()); err != nil {
		return fmt.Errorf("publishing delivery %s to %s: %w", d.payload.DeliveryID, DeadSubject, err)
	}
	return d.msg.Ack()
}

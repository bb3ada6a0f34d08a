package ros

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/utils"
)

// DefaultQueueSize is how many undelivered messages a topic holds before its producer blocks.
const DefaultQueueSize = 1000

type topicQueue struct {
	msgType  string
	handlers []Handler
	queue    chan []byte
}

// dispatcher fans messages out to per-topic goroutines so that each topic keeps its order
// while topics do not wait on each other.
type dispatcher struct {
	mu        sync.Mutex
	logger    logging.Logger
	queueSize int
	topics    map[string]*topicQueue
	workers   utils.StoppableWorkers
}

func newDispatcher(queueSize int, logger logging.Logger) *dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &dispatcher{
		logger:    logger,
		queueSize: queueSize,
		topics:    map[string]*topicQueue{},
	}
}

func (d *dispatcher) subscribe(topic, msgType string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.workers != nil {
		return errors.Errorf("cannot subscribe to %q after start", topic)
	}
	topic = NormalizeTopic(topic)
	if topic == "" {
		return errors.New("topic must not be empty")
	}
	tq, ok := d.topics[topic]
	if !ok {
		tq = &topicQueue{msgType: msgType, queue: make(chan []byte, d.queueSize)}
		d.topics[topic] = tq
	}
	tq.handlers = append(tq.handlers, handler)
	return nil
}

// subscriptions returns the subscribed topics and their message types.
func (d *dispatcher) subscriptions() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]string, len(d.topics))
	for topic, tq := range d.topics {
		out[topic] = tq.msgType
	}
	return out
}

func (d *dispatcher) start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.workers != nil {
		return
	}
	d.workers = utils.NewStoppableWorkersWithContext(ctx)
	for topic, tq := range d.topics {
		d.workers.AddWorkers(func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-tq.queue:
					for _, handler := range tq.handlers {
						handler(ctx, payload)
					}
				}
			}
		})
		d.logger.Debugw("dispatching topic", "topic", topic)
	}
}

// deliver queues payload for topic. It reports false when nobody subscribed to topic or ctx
// ended while the queue was full.
func (d *dispatcher) deliver(ctx context.Context, topic string, payload []byte) bool {
	d.mu.Lock()
	tq, ok := d.topics[NormalizeTopic(topic)]
	d.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case tq.queue <- payload:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *dispatcher) stop() {
	d.mu.Lock()
	workers := d.workers
	d.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
}

package ros

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/utils"
)

// DefaultReconnectInterval is how long RosbridgeSource waits before redialing a dropped
// connection.
const DefaultReconnectInterval = time.Second

// rosbridgeOp is one frame of the rosbridge v2 protocol.
type rosbridgeOp struct {
	Op          string          `json:"op"`
	ID          string          `json:"id,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Type        string          `json:"type,omitempty"`
	QueueLength int             `json:"queue_length,omitempty"`
	Msg         json.RawMessage `json:"msg,omitempty"`
	Level       string          `json:"level,omitempty"`
}

// RosbridgeSource receives topics from a rosbridge websocket server.
type RosbridgeSource struct {
	id                string
	url               string
	dialer            *websocket.Dialer
	reconnectInterval time.Duration
	logger            logging.Logger
	d                 *dispatcher

	mu      sync.Mutex
	conn    *websocket.Conn
	workers utils.StoppableWorkers
}

// NewRosbridgeSource returns a source for the rosbridge server at url, e.g. ws://robot:9090.
func NewRosbridgeSource(url string, logger logging.Logger) *RosbridgeSource {
	return &RosbridgeSource{
		id:                uuid.NewString(),
		url:               url,
		dialer:            websocket.DefaultDialer,
		reconnectInterval: DefaultReconnectInterval,
		logger:            logger,
		d:                 newDispatcher(DefaultQueueSize, logger),
	}
}

// Subscribe registers handler for topic. msgType may be empty when the server already knows
// the topic.
func (rs *RosbridgeSource) Subscribe(topic, msgType string, handler Handler) error {
	return rs.d.subscribe(topic, msgType, handler)
}

// Start dials the server, subscribes every registered topic and begins delivery. A connection
// dropped later is redialed in the background until Close.
func (rs *RosbridgeSource) Start(ctx context.Context) error {
	conn, err := rs.connect(ctx)
	if err != nil {
		return err
	}

	rs.d.start(ctx)
	rs.mu.Lock()
	rs.conn = conn
	rs.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		rs.readLoop(ctx, conn)
	})
	rs.mu.Unlock()
	return nil
}

func (rs *RosbridgeSource) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := rs.dialer.DialContext(ctx, rs.url, nil)
	if resp != nil && resp.Body != nil {
		goutils.UncheckedError(resp.Body.Close())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial rosbridge at %s", rs.url)
	}

	for topic, msgType := range rs.d.subscriptions() {
		op := rosbridgeOp{
			Op:          "subscribe",
			ID:          rs.subscriptionID(topic),
			Topic:       topic,
			Type:        msgType,
			QueueLength: DefaultQueueSize,
		}
		if err := conn.WriteJSON(op); err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "unable to subscribe to %s", topic), conn.Close())
		}
	}
	rs.logger.Infow("connected to rosbridge", "url", rs.url)
	return conn, nil
}

// subscriptionID is unique per source and topic.
func (rs *RosbridgeSource) subscriptionID(topic string) string {
	return fmt.Sprintf("subscribe:%s:%s", topic, rs.id)
}

func (rs *RosbridgeSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Closing the connection unblocks ReadMessage when the workers stop.
	closeOnDone := func(c *websocket.Conn) func() bool {
		return context.AfterFunc(ctx, func() { goutils.UncheckedError(c.Close()) })
	}
	stopWatch := closeOnDone(conn)
	defer func() { stopWatch() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rs.logger.Warnw("rosbridge connection lost, reconnecting", "url", rs.url, "error", err)
			next := rs.reconnect(ctx)
			if next == nil {
				return
			}
			stopWatch()
			conn = next
			stopWatch = closeOnDone(conn)
			continue
		}

		var op rosbridgeOp
		if err := json.Unmarshal(data, &op); err != nil {
			rs.logger.Warnw("dropping undecodable rosbridge frame", "error", err)
			continue
		}
		switch op.Op {
		case "publish":
			rs.d.deliver(ctx, op.Topic, op.Msg)
		case "status":
			rs.logger.Infow("rosbridge status", "level", op.Level, "id", op.ID, "msg", string(op.Msg))
		default:
			rs.logger.Debugw("ignoring rosbridge op", "op", op.Op)
		}
	}
}

func (rs *RosbridgeSource) reconnect(ctx context.Context) *websocket.Conn {
	for {
		if !goutils.SelectContextOrWait(ctx, rs.reconnectInterval) {
			return nil
		}
		conn, err := rs.connect(ctx)
		if err != nil {
			rs.logger.Debugw("rosbridge redial failed", "error", err)
			continue
		}
		rs.mu.Lock()
		rs.conn = conn
		rs.mu.Unlock()
		return conn
	}
}

// Close unsubscribes, closes the connection and waits for handlers to return.
func (rs *RosbridgeSource) Close() error {
	rs.mu.Lock()
	conn, workers := rs.conn, rs.workers
	rs.mu.Unlock()

	var err error
	if conn != nil {
		for topic := range rs.d.subscriptions() {
			writeErr := conn.WriteJSON(rosbridgeOp{Op: "unsubscribe", ID: rs.subscriptionID(topic), Topic: topic})
			if writeErr != nil {
				if !errors.Is(writeErr, net.ErrClosed) && !errors.Is(writeErr, websocket.ErrCloseSent) {
					err = multierr.Append(err, writeErr)
				}
				break
			}
		}
	}
	if workers != nil {
		workers.Stop()
	}
	rs.d.stop()
	if conn != nil {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	return err
}

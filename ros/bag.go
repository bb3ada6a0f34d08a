package ros

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}
	return rb, nil
}

// BagMessage is one recorded message.
type BagMessage struct {
	Topic   string
	Stamp   time.Time
	Payload json.RawMessage
}

type bagRecord struct {
	Meta struct {
		Topic string `json:"topic"`
		Secs  int64  `json:"secs"`
		Nsecs int64  `json:"nsecs"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

// ReadBagMessages returns every message of the given topics in recording order.
func ReadBagMessages(rb *rosbag.RosBag, topics []string) ([]BagMessage, error) {
	wanted := make(map[string]bool, len(topics))
	for _, topic := range topics {
		wanted[NormalizeTopic(topic)] = true
	}
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return wanted[NormalizeTopic(t)] },
		true,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	readers := make([]lineReader, 0, len(rb.TopicsAsJSON))
	for _, msgs := range rb.TopicsAsJSON {
		readers = append(readers, msgs)
	}
	return collectBagMessages(readers)
}

// collectBagMessages decodes newline separated gobag records and orders them by stamp. Records
// with equal stamps keep their per-topic order.
func collectBagMessages(readers []lineReader) ([]BagMessage, error) {
	var all []BagMessage
	for _, msgs := range readers {
		for {
			data, err := msgs.ReadBytes('\n')
			if len(data) > 0 {
				var rec bagRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return nil, errors.Wrap(err, "malformed bag record")
				}
				all = append(all, BagMessage{
					Topic:   NormalizeTopic(rec.Meta.Topic),
					Stamp:   time.Unix(rec.Meta.Secs, rec.Meta.Nsecs),
					Payload: rec.Data,
				})
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Stamp.Before(all[j].Stamp) })
	return all, nil
}

// BagSource replays recorded messages as a Subscriber.
type BagSource struct {
	logger logging.Logger
	clk    clock.Clock
	rate   float64
	load   func(topics []string) ([]BagMessage, error)
	d      *dispatcher
	player utils.StoppableWorkers
	done   chan struct{}
}

// NewBagSource returns a source that replays the bag at path. rate scales the recorded timing
// (2 plays twice as fast); a rate of zero replays as fast as handlers accept messages.
func NewBagSource(path string, rate float64, clk clock.Clock, logger logging.Logger) *BagSource {
	return newBagSource(func(topics []string) ([]BagMessage, error) {
		rb, err := ReadBag(path)
		if err != nil {
			return nil, err
		}
		return ReadBagMessages(rb, topics)
	}, rate, clk, logger)
}

// NewBagSourceFromMessages replays already decoded messages.
func NewBagSourceFromMessages(msgs []BagMessage, rate float64, clk clock.Clock, logger logging.Logger) *BagSource {
	return newBagSource(func([]string) ([]BagMessage, error) { return msgs, nil }, rate, clk, logger)
}

func newBagSource(load func([]string) ([]BagMessage, error), rate float64, clk clock.Clock, logger logging.Logger) *BagSource {
	if clk == nil {
		clk = clock.New()
	}
	return &BagSource{
		logger: logger,
		clk:    clk,
		rate:   rate,
		load:   load,
		d:      newDispatcher(DefaultQueueSize, logger),
		done:   make(chan struct{}),
	}
}

// Subscribe registers handler for topic.
func (bs *BagSource) Subscribe(topic, msgType string, handler Handler) error {
	return bs.d.subscribe(topic, msgType, handler)
}

// Start loads the bag and begins replay in the background.
func (bs *BagSource) Start(ctx context.Context) error {
	subs := bs.d.subscriptions()
	topics := make([]string, 0, len(subs))
	for topic := range subs {
		topics = append(topics, topic)
	}
	msgs, err := bs.load(topics)
	if err != nil {
		return err
	}
	bs.logger.Infow("replaying bag", "messages", len(msgs), "topics", topics, "rate", bs.rate)

	bs.d.start(ctx)
	bs.player = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		defer close(bs.done)
		bs.play(ctx, msgs)
	})
	return nil
}

func (bs *BagSource) play(ctx context.Context, msgs []BagMessage) {
	if len(msgs) == 0 {
		return
	}
	first := msgs[0].Stamp
	started := bs.clk.Now()
	for _, msg := range msgs {
		if bs.rate > 0 {
			due := started.Add(time.Duration(float64(msg.Stamp.Sub(first)) / bs.rate))
			if wait := due.Sub(bs.clk.Now()); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-bs.clk.After(wait):
				}
			}
		}
		if !bs.d.deliver(ctx, msg.Topic, msg.Payload) && ctx.Err() != nil {
			return
		}
	}
	bs.logger.Info("bag replay finished")
}

// Done is closed once every message has been handed to the subscribers' queues.
func (bs *BagSource) Done() <-chan struct{} {
	return bs.done
}

// Close stops replay and waits for handlers to return.
func (bs *BagSource) Close() error {
	if bs.player != nil {
		bs.player.Stop()
	}
	bs.d.stop()
	return nil
}

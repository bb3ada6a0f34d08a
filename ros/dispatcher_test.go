package ros

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/costmapclient/logging"
)

type recorder struct {
	mu   sync.Mutex
	msgs map[string][]string
	all  chan struct{}
	want int
	got  int
}

func newRecorder(want int) *recorder {
	return &recorder{msgs: map[string][]string{}, all: make(chan struct{}), want: want}
}

func (r *recorder) handler(topic string) Handler {
	return func(ctx context.Context, payload []byte) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.msgs[topic] = append(r.msgs[topic], string(payload))
		r.got++
		if r.got == r.want {
			close(r.all)
		}
	}
}

func (r *recorder) wait(t *testing.T) map[string][]string {
	t.Helper()
	select {
	case <-r.all:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for messages")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs
}

func TestDispatcherKeepsPerTopicOrder(t *testing.T) {
	d := newDispatcher(4, logging.NewTestLogger(t))
	rec := newRecorder(20)
	test.That(t, d.subscribe("costmap", OccupancyGridType, rec.handler("costmap")), test.ShouldBeNil)
	test.That(t, d.subscribe("/costmap_updates", OccupancyGridUpdateType, rec.handler("updates")), test.ShouldBeNil)
	test.That(t, d.subscriptions(), test.ShouldResemble, map[string]string{
		"/costmap":         OccupancyGridType,
		"/costmap_updates": OccupancyGridUpdateType,
	})

	ctx := context.Background()
	d.start(ctx)
	defer d.stop()
	test.That(t, d.subscribe("footprint", PolygonStampedType, rec.handler("footprint")), test.ShouldNotBeNil)

	for i := 0; i < 10; i++ {
		test.That(t, d.deliver(ctx, "/costmap", []byte{byte('a' + i)}), test.ShouldBeTrue)
		test.That(t, d.deliver(ctx, "costmap_updates", []byte{byte('a' + i)}), test.ShouldBeTrue)
	}
	test.That(t, d.deliver(ctx, "/unknown", []byte("x")), test.ShouldBeFalse)

	msgs := rec.wait(t)
	want := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	test.That(t, msgs["costmap"], test.ShouldResemble, want)
	test.That(t, msgs["updates"], test.ShouldResemble, want)
}

func TestCollectBagMessagesOrdersByStamp(t *testing.T) {
	costmapLines := bytes.NewBufferString(
		`{"meta": {"topic":"/costmap","secs":1,"nsecs":0}, "data": {"n": 1}}` + "\n" +
			`{"meta": {"topic":"/costmap","secs":3,"nsecs":0}, "data": {"n": 3}}` + "\n")
	updateLines := bytes.NewBufferString(
		`{"meta": {"topic":"/costmap_updates","secs":2,"nsecs":0}, "data": {"n": 2}}` + "\n" +
			`{"meta": {"topic":"/costmap_updates","secs":3,"nsecs":0}, "data": {"n": 4}}`)

	msgs, err := collectBagMessages([]lineReader{costmapLines, updateLines})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgs, test.ShouldHaveLength, 4)
	test.That(t, string(msgs[0].Payload), test.ShouldEqual, `{"n": 1}`)
	test.That(t, msgs[1].Topic, test.ShouldEqual, "/costmap_updates")
	test.That(t, msgs[2].Topic, test.ShouldEqual, "/costmap")
	test.That(t, msgs[2].Stamp, test.ShouldEqual, time.Unix(3, 0))
	test.That(t, string(msgs[3].Payload), test.ShouldEqual, `{"n": 4}`)

	_, err = collectBagMessages([]lineReader{bytes.NewBufferString("{broken\n")})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBagSourceReplaysWithTiming(t *testing.T) {
	clk := clock.NewMock()
	start := time.Unix(100, 0)
	msgs := []BagMessage{
		{Topic: "/costmap", Stamp: start, Payload: []byte("1")},
		{Topic: "/footprint", Stamp: start.Add(2 * time.Second), Payload: []byte("2")},
		{Topic: "/costmap", Stamp: start.Add(4 * time.Second), Payload: []byte("3")},
	}
	bs := NewBagSourceFromMessages(msgs, 2, clk, logging.NewTestLogger(t))
	rec := newRecorder(3)
	test.That(t, bs.Subscribe("costmap", "", rec.handler("costmap")), test.ShouldBeNil)
	test.That(t, bs.Subscribe("footprint", "", rec.handler("footprint")), test.ShouldBeNil)

	test.That(t, bs.Start(context.Background()), test.ShouldBeNil)
	defer func() { test.That(t, bs.Close(), test.ShouldBeNil) }()

	// At rate 2 the recording spans two seconds of replay; keep the mock clock moving until
	// every message arrived.
	go func() {
		for {
			select {
			case <-rec.all:
				return
			case <-time.After(5 * time.Millisecond):
				clk.Add(250 * time.Millisecond)
			}
		}
	}()
	got := rec.wait(t)
	test.That(t, got["costmap"], test.ShouldResemble, []string{"1", "3"})
	test.That(t, got["footprint"], test.ShouldResemble, []string{"2"})

	select {
	case <-bs.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
}

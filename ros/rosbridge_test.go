package ros

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"go.viam.com/costmapclient/logging"
)

type fakeRosbridge struct {
	t          *testing.T
	upgrader   websocket.Upgrader
	mu         sync.Mutex
	subscribed []rosbridgeOp
	ready      chan *websocket.Conn
}

func newFakeRosbridge(t *testing.T, expectedSubs int) (*fakeRosbridge, *httptest.Server) {
	fr := &fakeRosbridge{t: t, ready: make(chan *websocket.Conn, 1)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := fr.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for i := 0; i < expectedSubs; i++ {
			var op rosbridgeOp
			if err := conn.ReadJSON(&op); err != nil {
				return
			}
			fr.mu.Lock()
			fr.subscribed = append(fr.subscribed, op)
			fr.mu.Unlock()
		}
		fr.ready <- conn
	}))
	return fr, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRosbridgeSourceDeliversPublishedMessages(t *testing.T) {
	fr, srv := newFakeRosbridge(t, 2)
	defer srv.Close()

	rs := NewRosbridgeSource(wsURL(srv), logging.NewTestLogger(t))
	rec := newRecorder(3)
	test.That(t, rs.Subscribe("costmap", OccupancyGridType, rec.handler("costmap")), test.ShouldBeNil)
	test.That(t, rs.Subscribe("costmap_updates", OccupancyGridUpdateType, rec.handler("updates")), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	test.That(t, rs.Start(ctx), test.ShouldBeNil)

	var server *websocket.Conn
	select {
	case server = <-fr.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw subscriptions")
	}
	defer server.Close()

	fr.mu.Lock()
	subscribedTopics := map[string]string{}
	for _, op := range fr.subscribed {
		test.That(t, op.Op, test.ShouldEqual, "subscribe")
		test.That(t, op.ID, test.ShouldEqual, rs.subscriptionID(op.Topic))
		subscribedTopics[op.Topic] = op.Type
	}
	fr.mu.Unlock()
	test.That(t, subscribedTopics, test.ShouldResemble, map[string]string{
		"/costmap":         OccupancyGridType,
		"/costmap_updates": OccupancyGridUpdateType,
	})

	frames := []string{
		`{"op": "publish", "topic": "/costmap", "msg": {"seq": 1}}`,
		`{"op": "status", "level": "warning", "msg": "hello"}`,
		`not json`,
		`{"op": "publish", "topic": "/costmap_updates", "msg": {"seq": 2}}`,
		`{"op": "publish", "topic": "/other", "msg": {"seq": 9}}`,
		`{"op": "publish", "topic": "/costmap", "msg": {"seq": 3}}`,
	}
	for _, frame := range frames {
		test.That(t, server.WriteMessage(websocket.TextMessage, []byte(frame)), test.ShouldBeNil)
	}

	got := rec.wait(t)
	test.That(t, got["costmap"], test.ShouldResemble, []string{`{"seq": 1}`, `{"seq": 3}`})
	test.That(t, got["updates"], test.ShouldResemble, []string{`{"seq": 2}`})

	test.That(t, rs.Close(), test.ShouldBeNil)
}

func TestRosbridgeSourceDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rs := NewRosbridgeSource(url, logging.NewTestLogger(t))
	test.That(t, rs.Subscribe("costmap", "", func(context.Context, []byte) {}), test.ShouldBeNil)
	err := rs.Start(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to dial rosbridge")
	test.That(t, rs.Close(), test.ShouldBeNil)
}

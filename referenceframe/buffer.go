package referenceframe

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/spatialmath"
)

// DefaultCacheDuration is how much transform history a TransformBuffer keeps per edge.
const DefaultCacheDuration = 10 * time.Second

// TransformResolver answers where a source frame is, expressed in a target frame, at a given
// time. The zero time asks for the latest time at which every edge of the chain is known.
//
// LookupTransform blocks until the transform becomes available or ctx is done; callers bound
// the wait with a context deadline.
type TransformResolver interface {
	LookupTransform(ctx context.Context, target, source string, at time.Time) (*StampedTransform, error)
}

// TransformSink accepts transforms, typically decoded from a tf topic.
type TransformSink interface {
	SetTransform(tf StampedTransform, static bool) error
}

type edge struct {
	parent  string
	static  bool
	history []StampedTransform // sorted by stamp, oldest first
}

// TransformBuffer is an in-memory tree of time-stamped transforms. Every frame has at most one
// parent; lookups walk both frames up to their closest common ancestor.
type TransformBuffer struct {
	mu            sync.Mutex
	clk           clock.Clock
	logger        logging.Logger
	cacheDuration time.Duration
	edges         map[string]*edge // keyed by child frame
	updated       chan struct{}
}

// NewTransformBuffer returns an empty buffer. A nil clk uses the wall clock and a
// non-positive cacheDuration uses DefaultCacheDuration.
func NewTransformBuffer(clk clock.Clock, cacheDuration time.Duration, logger logging.Logger) *TransformBuffer {
	if clk == nil {
		clk = clock.New()
	}
	if cacheDuration <= 0 {
		cacheDuration = DefaultCacheDuration
	}
	return &TransformBuffer{
		clk:           clk,
		logger:        logger,
		cacheDuration: cacheDuration,
		edges:         map[string]*edge{},
		updated:       make(chan struct{}),
	}
}

// SetTransform stores tf. Static transforms are valid for all time and replace any history.
// A child that changes parent drops its previous history.
func (tb *TransformBuffer) SetTransform(tf StampedTransform, static bool) error {
	switch {
	case tf.Parent == "" || tf.Child == "":
		return NewInvalidTransformError(tf.Parent, tf.Child, "frame names must not be empty")
	case tf.Parent == tf.Child:
		return NewInvalidTransformError(tf.Parent, tf.Child, "parent and child are the same frame")
	case tf.Transform == nil:
		return NewInvalidTransformError(tf.Parent, tf.Child, "missing transform")
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.createsCycle(tf.Parent, tf.Child) {
		return NewInvalidTransformError(tf.Parent, tf.Child, "would create a cycle")
	}

	e, ok := tb.edges[tf.Child]
	if !ok || e.parent != tf.Parent || e.static != static {
		if ok && e.parent != tf.Parent {
			tb.logger.Debugw("frame changed parent", "frame", tf.Child, "old_parent", e.parent, "new_parent", tf.Parent)
		}
		e = &edge{parent: tf.Parent, static: static}
		tb.edges[tf.Child] = e
	}

	if static {
		e.history = []StampedTransform{tf}
	} else {
		idx := sort.Search(len(e.history), func(i int) bool { return e.history[i].Stamp.After(tf.Stamp) })
		e.history = append(e.history, StampedTransform{})
		copy(e.history[idx+1:], e.history[idx:])
		e.history[idx] = tf

		newest := e.history[len(e.history)-1].Stamp
		cutoff := newest.Add(-tb.cacheDuration)
		drop := sort.Search(len(e.history), func(i int) bool { return !e.history[i].Stamp.Before(cutoff) })
		e.history = e.history[drop:]
	}

	close(tb.updated)
	tb.updated = make(chan struct{})
	return nil
}

func (tb *TransformBuffer) createsCycle(parent, child string) bool {
	for frame := parent; ; {
		if frame == child {
			return true
		}
		e, ok := tb.edges[frame]
		if !ok {
			return false
		}
		frame = e.parent
	}
}

// FrameNames returns every frame the buffer knows about, sorted.
func (tb *TransformBuffer) FrameNames() []string {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	seen := map[string]struct{}{}
	for child, e := range tb.edges {
		seen[child] = struct{}{}
		seen[e.parent] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupTransform returns the pose of source expressed in target. It waits for new transforms
// until the lookup succeeds or ctx is done, in which case the last lookup error is returned.
func (tb *TransformBuffer) LookupTransform(ctx context.Context, target, source string, at time.Time) (*StampedTransform, error) {
	for {
		tb.mu.Lock()
		tf, err := tb.lookupLocked(target, source, at)
		updated := tb.updated
		tb.mu.Unlock()
		if err == nil {
			return tf, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(err, "gave up waiting for %q->%q: %v", target, source, ctx.Err())
		case <-updated:
		}
	}
}

// CanTransform reports whether LookupTransform would currently succeed without waiting.
func (tb *TransformBuffer) CanTransform(target, source string, at time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	_, err := tb.lookupLocked(target, source, at)
	return err == nil
}

func (tb *TransformBuffer) knownLocked(frame string) bool {
	if _, ok := tb.edges[frame]; ok {
		return true
	}
	for _, e := range tb.edges {
		if e.parent == frame {
			return true
		}
	}
	return false
}

// chainToRoot returns the frames from frame up to its root, frame first.
func (tb *TransformBuffer) chainToRoot(frame string) []string {
	chain := []string{frame}
	for {
		e, ok := tb.edges[frame]
		if !ok {
			return chain
		}
		frame = e.parent
		chain = append(chain, frame)
	}
}

func (tb *TransformBuffer) lookupLocked(target, source string, at time.Time) (*StampedTransform, error) {
	if target == source {
		stamp := at
		if stamp.IsZero() {
			stamp = tb.clk.Now()
		}
		return &StampedTransform{Parent: target, Child: source, Stamp: stamp, Transform: spatialmath.NewZeroPose()}, nil
	}

	for _, frame := range []string{source, target} {
		if !tb.knownLocked(frame) {
			return nil, NewFrameMissingError(frame)
		}
	}
	sourceChain := tb.chainToRoot(source)
	targetChain := tb.chainToRoot(target)

	ancestorIdx := map[string]int{}
	for i, frame := range targetChain {
		ancestorIdx[frame] = i
	}
	common, sourceSteps := "", -1
	for i, frame := range sourceChain {
		if _, ok := ancestorIdx[frame]; ok {
			common, sourceSteps = frame, i
			break
		}
	}
	if sourceSteps < 0 {
		return nil, NewFramesNotConnectedError(target, source)
	}
	sourcePath := sourceChain[:sourceSteps]
	targetPath := targetChain[:ancestorIdx[common]]

	stamp := at
	if stamp.IsZero() {
		stamp = tb.latestCommonTime(append(append([]string{}, sourcePath...), targetPath...))
	}

	sourceInCommon, err := tb.composeToAncestor(sourcePath, stamp)
	if err != nil {
		return nil, err
	}
	targetInCommon, err := tb.composeToAncestor(targetPath, stamp)
	if err != nil {
		return nil, err
	}

	return &StampedTransform{
		Parent:    target,
		Child:     source,
		Stamp:     stamp,
		Transform: spatialmath.Compose(spatialmath.PoseInverse(targetInCommon), sourceInCommon),
	}, nil
}

// latestCommonTime is the newest stamp at which every non-static edge of the given children has
// data. Chains made only of static edges are valid now.
func (tb *TransformBuffer) latestCommonTime(children []string) time.Time {
	var common time.Time
	for _, child := range children {
		e := tb.edges[child]
		if e.static || len(e.history) == 0 {
			continue
		}
		newest := e.history[len(e.history)-1].Stamp
		if common.IsZero() || newest.Before(common) {
			common = newest
		}
	}
	if common.IsZero() {
		return tb.clk.Now()
	}
	return common
}

// composeToAncestor returns the pose of path[0] in the parent of path[len(path)-1].
func (tb *TransformBuffer) composeToAncestor(path []string, at time.Time) (spatialmath.Pose, error) {
	result := spatialmath.NewZeroPose()
	for _, child := range path {
		e := tb.edges[child]
		tf, err := e.sample(child, at)
		if err != nil {
			return nil, err
		}
		result = spatialmath.Compose(tf, result)
	}
	return result, nil
}

func (e *edge) sample(child string, at time.Time) (spatialmath.Pose, error) {
	if len(e.history) == 0 {
		return nil, NewExtrapolationError(e.parent, child)
	}
	if e.static {
		return e.history[0].Transform, nil
	}

	idx := sort.Search(len(e.history), func(i int) bool { return !e.history[i].Stamp.Before(at) })
	switch {
	case idx == len(e.history):
		return nil, NewExtrapolationError(e.parent, child)
	case e.history[idx].Stamp.Equal(at):
		return e.history[idx].Transform, nil
	case idx == 0:
		return nil, NewExtrapolationError(e.parent, child)
	}

	before, after := e.history[idx-1], e.history[idx]
	ratio := float64(at.Sub(before.Stamp)) / float64(after.Stamp.Sub(before.Stamp))
	return interpolate(before.Transform, after.Transform, ratio), nil
}

// interpolate blends positions linearly and orientations by spherical linear interpolation.
func interpolate(a, b spatialmath.Pose, ratio float64) spatialmath.Pose {
	point := a.Point().Add(b.Point().Sub(a.Point()).Mul(ratio))

	qa, qb := a.Orientation().Quaternion(), b.Orientation().Quaternion()
	dot := qa.Real*qb.Real + qa.Imag*qb.Imag + qa.Jmag*qb.Jmag + qa.Kmag*qb.Kmag
	if dot < 0 {
		qb, dot = quat.Scale(-1, qb), -dot
	}
	var q quat.Number
	if dot > 0.9995 {
		q = quat.Add(qa, quat.Scale(ratio, quat.Sub(qb, qa)))
	} else {
		theta := math.Acos(dot)
		sinTheta := math.Sin(theta)
		q = quat.Add(
			quat.Scale(math.Sin((1-ratio)*theta)/sinTheta, qa),
			quat.Scale(math.Sin(ratio*theta)/sinTheta, qb),
		)
	}
	return spatialmath.NewPose(point, spatialmath.NewQuaternion(q.Real, q.Imag, q.Jmag, q.Kmag))
}

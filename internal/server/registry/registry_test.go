package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
)

var t0 = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func newTestRegistry(nodes ...string) *Registry {
	r := New(Config{SubmitTimeout: 100 * time.Millisecond, BarrierTimeout: 100 * time.Millisecond})
	for _, id := range nodes {
		r.Register(id, "s-"+id, "10.0.0.1:1234", t0)
	}
	return r
}

func events(names ...string) []domain.Event {
	out := make([]domain.Event, len(names))
	for i, n := range names {
		out[i] = domain.MustEvent(n)
	}
	return out
}

func recipientIDs(rs []Recipient) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.NodeID
	}
	return out
}

func TestMerge_AllSubmittedInArrivalOrder(t *testing.T) {
	r := newTestRegistry("a", "b")

	res, err := r.Submit("b", "s-b", 5, events("Brush_Move"), at(1))
	require.NoError(t, err)
	assert.True(t, res.Empty())

	res, err = r.Submit("a", "s-a", 5, events("Head_Move"), at(2))
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)

	m := res.Merges[0]
	assert.Equal(t, uint64(0), m.Round)
	assert.Equal(t, []string{"Brush_Move", "Head_Move"}, domain.Names(m.Events))
	assert.Equal(t, protocol.Digest(m.Events), m.Digest)
	assert.Equal(t, []string{"b", "a"}, recipientIDs(m.Recipients))
	for _, rc := range m.Recipients {
		assert.Equal(t, uint64(5), rc.Tag)
	}
	assert.Empty(t, m.Missing)
	assert.False(t, m.TimedOut)
}

func TestMerge_SubmitTimeoutMarksMissing(t *testing.T) {
	r := newTestRegistry("a", "b")

	_, err := r.Submit("a", "s-a", 1, events("Grab"), at(0))
	require.NoError(t, err)

	assert.True(t, r.Tick(at(99)).Empty())

	res := r.Tick(at(100))
	require.Len(t, res.Merges, 1)
	assert.True(t, res.Merges[0].TimedOut)
	assert.Equal(t, []string{"b"}, res.Merges[0].Missing)
	assert.Equal(t, []string{"a"}, recipientIDs(res.Merges[0].Recipients))

	// b is missing, not evicted.
	assert.Equal(t, 2, r.Len())
}

func TestBarrier_ReleasesWhenAllReady(t *testing.T) {
	r := newTestRegistry("a", "b")
	_, _ = r.Submit("a", "s-a", 3, nil, at(0))
	_, _ = r.Submit("b", "s-b", 8, nil, at(1))

	res, err := r.Ready("a", "s-a", 3, at(5))
	require.NoError(t, err)
	assert.Empty(t, res.Releases)

	res, err = r.Ready("b", "s-b", 8, at(7))
	require.NoError(t, err)
	require.Len(t, res.Releases, 1)

	rel := res.Releases[0]
	assert.False(t, rel.TimedOut)
	assert.Empty(t, rel.Missing)
	assert.Equal(t, 6*time.Millisecond, rel.Wait)
	assert.ElementsMatch(t, []Recipient{
		{NodeID: "a", SessionID: "s-a", Tag: 3},
		{NodeID: "b", SessionID: "s-b", Tag: 8},
	}, rel.Recipients)

	st := r.Status()
	assert.Equal(t, uint64(1), st.Merged)
	assert.Equal(t, uint64(1), st.Released)
	assert.Zero(t, st.PendingRounds)
}

func TestBarrier_EarlyReadyIsKept(t *testing.T) {
	r := newTestRegistry("a", "b")
	_, _ = r.Submit("a", "s-a", 0, nil, at(0))

	res, err := r.Ready("a", "s-a", 0, at(1))
	require.NoError(t, err)
	assert.True(t, res.Empty())

	res, _ = r.Submit("b", "s-b", 0, nil, at(2))
	require.Len(t, res.Merges, 1)
	assert.Empty(t, res.Releases)

	res, _ = r.Ready("b", "s-b", 0, at(3))
	require.Len(t, res.Releases, 1)
	assert.Len(t, res.Releases[0].Recipients, 2)
}

func TestBarrier_Timeout(t *testing.T) {
	r := newTestRegistry("a", "b")
	_, _ = r.Submit("a", "s-a", 7, nil, at(0))
	_, _ = r.Submit("b", "s-b", 7, nil, at(0))
	_, _ = r.Ready("a", "s-a", 7, at(1))

	assert.True(t, r.Tick(at(50)).Empty())

	res := r.Tick(at(100))
	require.Len(t, res.Releases, 1)
	rel := res.Releases[0]
	assert.True(t, rel.TimedOut)
	assert.Equal(t, []string{"b"}, rel.Missing)
	assert.Equal(t, []string{"a"}, recipientIDs(rel.Recipients))

	_, err := r.Ready("b", "s-b", 7, at(120))
	assert.ErrorIs(t, err, ErrUnknownRound)
}

func TestUnregister_UnblocksOpenRound(t *testing.T) {
	r := newTestRegistry("a", "b")
	_, _ = r.Submit("a", "s-a", 1, events("Grab"), at(0))

	res := r.Unregister("b", "s-b", at(10))
	require.Len(t, res.Merges, 1)
	assert.False(t, res.Merges[0].TimedOut)
	assert.Empty(t, res.Merges[0].Missing)
	assert.Equal(t, 1, r.Len())

	// A stale session does not unregister the current one.
	r.Register("a", "s-a2", "10.0.0.1:999", at(20))
	assert.True(t, r.Unregister("a", "s-a", at(21)).Empty())
	assert.True(t, r.Registered("a", "s-a2"))
}

func TestUnregister_DropsBarrierExpectation(t *testing.T) {
	r := newTestRegistry("a", "b")
	_, _ = r.Submit("a", "s-a", 1, nil, at(0))
	_, _ = r.Submit("b", "s-b", 1, nil, at(0))
	_, _ = r.Ready("a", "s-a", 1, at(1))

	res := r.Unregister("b", "s-b", at(2))
	require.Len(t, res.Releases, 1)
	assert.Equal(t, []string{"a"}, recipientIDs(res.Releases[0].Recipients))
	assert.False(t, res.Releases[0].TimedOut)
}

func TestLateJoiner_LandsInOpenRound(t *testing.T) {
	r := newTestRegistry("a")
	for tag := uint64(10); tag < 13; tag++ {
		res, err := r.Submit("a", "s-a", tag, nil, at(int(tag)))
		require.NoError(t, err)
		require.Len(t, res.Merges, 1)
		_, _ = r.Ready("a", "s-a", tag, at(int(tag)))
	}

	r.Register("b", "s-b", "10.0.0.2:1", at(20))
	_, _ = r.Submit("a", "s-a", 13, events("Head_Move"), at(21))
	res, err := r.Submit("b", "s-b", 0, events("Brush_Move"), at(22))
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)

	m := res.Merges[0]
	assert.Equal(t, uint64(3), m.Round)
	assert.Equal(t, []string{"Head_Move", "Brush_Move"}, domain.Names(m.Events))
	assert.ElementsMatch(t, []Recipient{
		{NodeID: "a", SessionID: "s-a", Tag: 13},
		{NodeID: "b", SessionID: "s-b", Tag: 0},
	}, m.Recipients)
}

func TestAheadNode_LandsInNextRound(t *testing.T) {
	r := newTestRegistry("a", "b")

	// a timed out locally and moved on before b submitted.
	_, _ = r.Submit("a", "s-a", 1, events("A1"), at(0))
	res, _ := r.Submit("a", "s-a", 2, events("A2"), at(60))
	assert.Empty(t, res.Merges)

	res, _ = r.Submit("b", "s-b", 1, events("B1"), at(70))
	require.Len(t, res.Merges, 1)
	assert.Equal(t, []string{"A1", "B1"}, domain.Names(res.Merges[0].Events))

	res, _ = r.Submit("b", "s-b", 2, events("B2"), at(80))
	require.Len(t, res.Merges, 1)
	assert.Equal(t, uint64(1), res.Merges[0].Round)
	assert.Equal(t, []string{"A2", "B2"}, domain.Names(res.Merges[0].Events))
}

func TestRegister_ReplacesSession(t *testing.T) {
	r := newTestRegistry("a")

	replaced := r.Register("a", "s-new", "10.0.0.9:1", at(1))
	assert.Equal(t, "s-a", replaced)

	_, err := r.Submit("a", "s-a", 1, nil, at(2))
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = r.Ready("ghost", "s-ghost", 1, at(2))
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = r.Ready("a", "s-new", 99, at(2))
	assert.ErrorIs(t, err, ErrUnknownRound)
}

func TestStatus(t *testing.T) {
	r := newTestRegistry("b", "a")
	_, _ = r.Submit("a", "s-a", 42, nil, at(3))

	st := r.Status()
	require.Len(t, st.Nodes, 2)
	assert.Equal(t, "a", st.Nodes[0].ID)
	assert.True(t, st.Nodes[0].Submitted)
	assert.Equal(t, uint64(42), st.Nodes[0].LastTag)
	assert.Equal(t, at(3), st.Nodes[0].LastSeen)
	assert.False(t, st.Nodes[1].Submitted)
	assert.Equal(t, 1, st.PendingRounds)
	assert.Equal(t, uint64(0), st.NextMerge)
}

func TestSetTimeouts(t *testing.T) {
	r := newTestRegistry("a", "b")
	r.SetTimeouts(10*time.Millisecond, 0)

	_, _ = r.Submit("a", "s-a", 1, nil, at(0))
	res := r.Tick(at(10))
	require.Len(t, res.Merges, 1)
	assert.True(t, r.Tick(at(50)).Empty(), "barrier timeout unchanged")
}

// Copyright 2025 Certen Protocol
//
// Session Registry Tests

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/txbridge/engine/pkg/clock"
	"github.com/txbridge/engine/pkg/kv"
)

func newTestRegistry(t *testing.T) (*Registry, *clock.DeterministicClock) {
	t.Helper()
	clk := clock.NewDeterministicClock(0, 1_700_000_000, clock.DefaultBlockParams())
	cfg := Config{
		SupportedVersions:     []string{"0.1", "0.2"},
		SupportedChainIDs:     []uint64{1, 2},
		HeartbeatIntervalSecs: 30,
		SessionTimeout:        15 * time.Minute,
		MsgCacheCapacity:      16,
	}
	return NewRegistry(kv.NewMemDB(), clk, cfg, nil), clk
}

func TestFullLifecycle_HelloThroughSettled(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require := require.New(t)

	result, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, []string{"zk"})
	require.NoError(err)
	require.Equal("0.2", result.ProtocolVersion)
	require.Equal([]uint64{1}, result.ChainIDs)

	rec, err := reg.Get("sess-1")
	require.NoError(err)
	require.Equal(StateIdle, rec.State)

	_, err = reg.Transition("sess-1", StateQuerySent)
	require.NoError(err)
	require.NoError(reg.RecordQuery("sess-1", "query-1"))

	_, err = reg.Transition("sess-1", StateOfferReceived)
	require.NoError(err)
	require.NoError(reg.RecordOffer("sess-1", "offer-1"))

	_, err = reg.Transition("sess-1", StateAcceptSent)
	require.NoError(err)

	_, err = reg.Transition("sess-1", StateFinalizing)
	require.NoError(err)

	final, err := reg.Transition("sess-1", StateSettled)
	require.NoError(err)
	require.Equal(StateSettled, final.State)
	require.Equal("query-1", final.QueryID)
	require.Equal("offer-1", final.OfferID)
}

func TestHello_RejectsDuplicateSessionID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)
	_, err = reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.ErrorIs(t, err, ErrSessionExists)
}

func TestHello_RejectsNoCommonVersionOrChain(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"9.9"}, []uint64{1}, nil)
	require.ErrorIs(t, err, ErrNoCommonVersion)

	_, err = reg.Hello("sess-2", []string{"0.2"}, []uint64{999}, nil)
	require.ErrorIs(t, err, ErrNoCommonChain)
}

func TestTransition_RejectsSkippingStates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	_, err = reg.Transition("sess-1", StateOfferReceived)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_AnyNonTerminalStateCanForceError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	rec, err := reg.ForceError("sess-1")
	require.NoError(t, err)
	require.Equal(t, StateErrored, rec.State)

	_, err = reg.ForceError("sess-1")
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestTransition_TimeoutRejectsFurtherTransitions(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	_, err = reg.Transition("sess-1", StateQuerySent)
	require.NoError(t, err)

	clk.Advance(uint64(DefaultTimeout(StateQuerySent).Seconds()) + 1)

	_, err = reg.Transition("sess-1", StateOfferReceived)
	require.ErrorIs(t, err, ErrSessionTimeout)
}

func TestSeenOrRecord_IdempotentReplay(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	seen, err := reg.SeenOrRecord("sess-1", "msg-1")
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = reg.SeenOrRecord("sess-1", "msg-1")
	require.NoError(t, err)
	require.True(t, seen, "replaying the same msg_id must be reported as already seen")

	seen, err = reg.SeenOrRecord("sess-1", "msg-2")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestHeartbeat_UpdatesLastActivity(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	clk.Advance(10)
	require.NoError(t, reg.Heartbeat("sess-1"))

	rec, err := reg.Get("sess-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1_700_000_010), rec.LastActivityUnix)
}

func TestClose_RemovesSession(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Hello("sess-1", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	require.NoError(t, reg.Close("sess-1"))
	_, err = reg.Get("sess-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweep_RemovesStaleSessionsOnly(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Hello("stale", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	clk.Advance(uint64((15 * time.Minute).Seconds()) + 60)

	_, err = reg.Hello("fresh", []string{"0.2"}, []uint64{1}, nil)
	require.NoError(t, err)

	swept, err := reg.Sweep()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"stale"}, swept)

	_, err = reg.Get("fresh")
	require.NoError(t, err)
}

func TestCanTransition_TerminalStatesHaveNoOutboundTransitions(t *testing.T) {
	require.False(t, CanTransition(StateSettled, StateQuerySent))
	require.False(t, CanTransition(StateErrored, StateQuerySent))
}

func TestCanTransition_SameStateIsNotATransition(t *testing.T) {
	require.False(t, CanTransition(StateIdle, StateIdle))
}

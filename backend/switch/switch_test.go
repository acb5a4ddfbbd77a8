package _switch

import (
	"sort"
	"testing"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

func drain(wire model.Wire) []model.Frame {
	var frames []model.Frame
	for {
		select {
		case f := <-wire.TX:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestSwitch_AttachTwice(t *testing.T) {
	sw := newTestSwitch()
	require.NoError(t, sw.Attach("a", model.NewWire(1)))
	assert.ErrorIs(t, sw.Attach("a", model.NewWire(1)), ErrEndpointExists)
}

func TestSwitch_JoinRequiresAttach(t *testing.T) {
	sw := newTestSwitch()
	assert.ErrorIs(t, sw.Join("general", "ghost"), ErrEndpointNotFound)
}

func TestSwitch_BroadcastExclude(t *testing.T) {
	sw := newTestSwitch()
	a, b, c := model.NewWire(4), model.NewWire(4), model.NewWire(4)
	require.NoError(t, sw.Attach("a", a))
	require.NoError(t, sw.Attach("b", b))
	require.NoError(t, sw.Attach("c", c))
	require.NoError(t, sw.Join("general", "a"))
	require.NoError(t, sw.Join("general", "b"))
	require.NoError(t, sw.Join("gaming", "c"))

	assert.Equal(t, 2, sw.Broadcast("general", model.Frame{Event: "x"}, ""))
	assert.Equal(t, 1, sw.Broadcast("general", model.Frame{Event: "y"}, "a"))

	assert.Equal(t, []model.Frame{{Event: "x"}}, drain(a))
	assert.Equal(t, []model.Frame{{Event: "x"}, {Event: "y"}}, drain(b))
	assert.Empty(t, drain(c))
}

func TestSwitch_LeaveAndDetach(t *testing.T) {
	sw := newTestSwitch()
	a, b := model.NewWire(4), model.NewWire(4)
	require.NoError(t, sw.Attach("a", a))
	require.NoError(t, sw.Attach("b", b))
	require.NoError(t, sw.Join("general", "a"))
	require.NoError(t, sw.Join("general", "b"))
	require.NoError(t, sw.Join("gaming", "a"))

	members := sw.Members("general")
	sort.Strings(members)
	assert.Equal(t, []string{"a", "b"}, members)

	sw.Leave("general", "b")
	assert.Equal(t, []string{"a"}, sw.Members("general"))

	sw.Detach("a")
	assert.Empty(t, sw.Members("general"))
	assert.Empty(t, sw.Members("gaming"))
	assert.False(t, sw.Emit("a", model.Frame{Event: "x"}))
	assert.Equal(t, 0, sw.Broadcast("gaming", model.Frame{Event: "x"}, ""))
}

func TestSwitch_FullWireDropsFrame(t *testing.T) {
	sw := newTestSwitch()
	slow, fast := model.NewWire(1), model.NewWire(4)
	require.NoError(t, sw.Attach("slow", slow))
	require.NoError(t, sw.Attach("fast", fast))
	require.NoError(t, sw.Join("general", "slow"))
	require.NoError(t, sw.Join("general", "fast"))

	assert.Equal(t, 2, sw.Broadcast("general", model.Frame{Event: "1"}, ""))
	assert.Equal(t, 1, sw.Broadcast("general", model.Frame{Event: "2"}, ""))

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 2)
	assert.True(t, sw.Emit("slow", model.Frame{Event: "3"}))
}

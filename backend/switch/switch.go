package _switch

import (
	"errors"
	"sync"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrEndpointExists   = errors.New("endpoint is already attached")
	ErrEndpointNotFound = errors.New("endpoint is not attached")
)

// Switch holds attached session endpoints and groups them into channels.
// Frames are delivered without blocking: if endpoint's wire is full the frame is dropped.
type Switch struct {
	logger    zerolog.Logger
	mx        *sync.RWMutex
	endpoints map[string]model.Wire
	channels  map[string]map[string]struct{}
	member    map[string]map[string]struct{} // endpoint -> channels
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger:    logger.With().Str("component", "switch").Logger(),
		mx:        &sync.RWMutex{},
		endpoints: make(map[string]model.Wire),
		channels:  make(map[string]map[string]struct{}),
		member:    make(map[string]map[string]struct{}),
	}
}

func (sw *Switch) Attach(endpoint string, wire model.Wire) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.endpoints[endpoint]; ok {
		return ErrEndpointExists
	}
	sw.endpoints[endpoint] = wire
	sw.member[endpoint] = make(map[string]struct{})

	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint attached")
	return nil
}

// Detach removes endpoint and its membership in every channel.
func (sw *Switch) Detach(endpoint string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	for channel := range sw.member[endpoint] {
		sw.leave(channel, endpoint)
	}
	delete(sw.member, endpoint)
	delete(sw.endpoints, endpoint)

	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint detached")
}

func (sw *Switch) Join(channel, endpoint string) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	channels, ok := sw.member[endpoint]
	if !ok {
		return ErrEndpointNotFound
	}
	members, ok := sw.channels[channel]
	if !ok {
		members = make(map[string]struct{})
		sw.channels[channel] = members
	}
	members[endpoint] = struct{}{}
	channels[channel] = struct{}{}

	sw.logger.Debug().
		Str("channel", channel).
		Str("endpoint", endpoint).
		Msg("endpoint joined channel")
	return nil
}

func (sw *Switch) Leave(channel, endpoint string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	sw.leave(channel, endpoint)

	sw.logger.Debug().
		Str("channel", channel).
		Str("endpoint", endpoint).
		Msg("endpoint left channel")
}

func (sw *Switch) leave(channel, endpoint string) {
	if members, ok := sw.channels[channel]; ok {
		delete(members, endpoint)
		if len(members) == 0 {
			delete(sw.channels, channel)
		}
	}
	if channels, ok := sw.member[endpoint]; ok {
		delete(channels, channel)
	}
}

// Members returns endpoints currently joined to the channel.
func (sw *Switch) Members(channel string) []string {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	members := make([]string, 0, len(sw.channels[channel]))
	for endpoint := range sw.channels[channel] {
		members = append(members, endpoint)
	}
	return members
}

// Emit sends frame to a single endpoint.
func (sw *Switch) Emit(endpoint string, frame model.Frame) bool {
	sw.mx.RLock()
	wire, ok := sw.endpoints[endpoint]
	sw.mx.RUnlock()

	if !ok {
		sw.logger.Debug().
			Str("dst", endpoint).
			Str("event", frame.Event).
			Msg("cannot emit, endpoint not found")
		return false
	}
	return send(frame, endpoint, wire.TX, &sw.logger)
}

// Broadcast sends frame to every channel member except the one given in exclude.
// Empty exclude means nobody is excluded. Returns number of delivered frames.
func (sw *Switch) Broadcast(channel string, frame model.Frame, exclude string) int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	var sent int
	for dst := range sw.channels[channel] {
		if dst == exclude {
			continue
		}
		wire, ok := sw.endpoints[dst]
		if !ok {
			continue
		}
		if send(frame, dst, wire.TX, &sw.logger) {
			sent++
		}
	}
	if sent == 0 {
		sw.logger.Trace().
			Str("channel", channel).
			Str("event", frame.Event).
			Msg("broadcast did not reach anyone")
	}
	return sent
}

func send(frame model.Frame, dst string, tx chan<- model.Frame, logger *zerolog.Logger) bool {
	select {
	case tx <- frame:
		logger.Trace().Str("dst", dst).Str("event", frame.Event).Msg("frame is forwarded")
		return true
	default:
		logger.Warn().Str("dst", dst).Str("event", frame.Event).Msg("dead endpoint, frame dropped")
		return false
	}
}

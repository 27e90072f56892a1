// Package dispatch pushes composed messages onto device screens and
// records worker responses back into history.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"crewpager/internal/device"
	"crewpager/internal/eventbus"
	"crewpager/internal/history"
	"crewpager/internal/message"
	"crewpager/internal/schedule"
	"crewpager/pkg/logx"
)

const (
	DefaultRatePerSec      = 10
	DefaultResponseLatency = time.Second
	DefaultStatusReset     = 3 * time.Second
)

// ErrNoPendingMessage means the device had nothing on screen; responding
// is a no-op and neither history nor device state changed.
var ErrNoPendingMessage = errors.New("device has no pending message")

// cannedReplies feed the worker auto-responder simulation.
var cannedReplies = []string{"OK", "Received", "Will do", "Need help", "Almost done"}

type Config struct {
	// RatePerSec limits device pushes per second; <= 0 disables limiting.
	RatePerSec int
	// ResponseLatency simulates the transmission delay between a worker
	// pressing a response button and the response being recorded.
	ResponseLatency time.Duration
	// StatusResetAfter is how long transient device status lines
	// ("Received", "Sending...") stay up before flipping back to ready.
	StatusResetAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResponseLatency <= 0 {
		c.ResponseLatency = DefaultResponseLatency
	}
	if c.StatusResetAfter <= 0 {
		c.StatusResetAfter = DefaultStatusReset
	}
	return c
}

type Engine struct {
	cfg     Config
	devices *device.Registry
	hist    *history.Log
	bus     eventbus.Bus
	clock   schedule.Clock
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, devices *device.Registry, hist *history.Log, bus eventbus.Bus, clock schedule.Clock, log logx.Logger) *Engine {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = schedule.RealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		cfg:     cfg,
		devices: devices,
		hist:    hist,
		bus:     bus,
		clock:   clock,
		log:     log,
	}
	if cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return e
}

// Dispatch puts m on every targeted device, overwriting whatever each
// device was showing. There is no per-device failure mode: the loop always
// completes.
func (e *Engine) Dispatch(m *message.Message) {
	for _, id := range m.Devices {
		if e.limiter != nil {
			_ = e.limiter.Wait(context.Background())
		}
		if _, err := e.devices.Assign(id, m.ID); err != nil {
			// Unknown ids are filtered at compose time; log and move on.
			e.log.Warn("dispatch skipped device", logx.Int("device", id), logx.Err(err))
			continue
		}
		e.publish(eventbus.TypeDeviceUpdated, Assignment{DeviceID: id, Message: e.snapshot(m)})
		e.setStatus(id, "Received", "received")
	}
	e.log.Info("message dispatched",
		logx.Int64("id", m.ID),
		logx.Int("devices", len(m.Devices)))
}

// snapshot returns a detached copy of m safe to hand to subscribers. The
// history copy is taken under the log's lock, so it cannot observe a
// response being written concurrently; m itself is only cloned when the
// message was never recorded.
func (e *Engine) snapshot(m *message.Message) *message.Message {
	if s, ok := e.hist.Get(m.ID); ok {
		return s
	}
	return m.Clone()
}

// Respond records the worker's chosen reply for whatever message is on the
// device screen. The recording happens after the simulated transmission
// latency; if the device is re-dispatched or cleared in the meantime the
// stale callback is dropped and the original response is lost, matching
// the mockup's unguarded overwrite semantics (but detected explicitly via
// the delivery token instead of silently corrupting state).
//
// Responding on an idle device is a no-op and returns ErrNoPendingMessage.
func (e *Engine) Respond(deviceID int, responseText string) error {
	msgID, token, ok := e.devices.Current(deviceID)
	if !ok {
		return ErrNoPendingMessage
	}

	e.setStatus(deviceID, "Sending...", "sending")
	e.log.Debug("response in flight",
		logx.Int("device", deviceID),
		logx.Int64("id", msgID),
		logx.String("response", responseText))

	e.clock.AfterFunc(e.cfg.ResponseLatency, func() {
		completedID, ok := e.devices.Complete(deviceID, token)
		if !ok {
			e.log.Debug("stale response dropped",
				logx.Int("device", deviceID), logx.Int64("id", msgID))
			return
		}
		if _, err := e.hist.AddResponse(completedID, deviceID, responseText, e.clock.Now()); err != nil {
			e.log.Warn("response not recorded",
				logx.Int("device", deviceID), logx.Int64("id", completedID), logx.Err(err))
		}
		e.publish(eventbus.TypeDeviceCleared, Cleared{DeviceID: deviceID})
		// "Sent" is a ready-kind status: it sticks until the next dispatch.
		if _, err := e.devices.SetStatus(deviceID, "Sent", "ready"); err == nil {
			e.publishStatus(deviceID)
		}
	})
	return nil
}

// ClearDevice wipes one device screen without recording anything.
func (e *Engine) ClearDevice(deviceID int) {
	e.devices.Clear(deviceID)
	e.publish(eventbus.TypeDeviceCleared, Cleared{DeviceID: deviceID})
}

// ClearAll wipes every device screen and resets status lines.
func (e *Engine) ClearAll() {
	e.devices.ClearAll()
	for _, id := range e.devices.IDs() {
		e.publish(eventbus.TypeDeviceCleared, Cleared{DeviceID: id})
	}
	e.log.Info("all device screens cleared")
}

// SimulateResponse answers the pending message on deviceID with a random
// canned reply. Devices with nothing on screen are skipped.
func (e *Engine) SimulateResponse(deviceID int) error {
	reply := cannedReplies[rand.Intn(len(cannedReplies))]
	return e.Respond(deviceID, reply)
}

// SimulateAll runs SimulateResponse over every device with a pending
// message and returns how many replies were started.
func (e *Engine) SimulateAll() int {
	n := 0
	for _, id := range e.devices.IDs() {
		if _, _, ok := e.devices.Current(id); !ok {
			continue
		}
		if err := e.SimulateResponse(id); err == nil {
			n++
		}
	}
	return n
}

// setStatus updates the transient status line and arms its auto-reset.
func (e *Engine) setStatus(deviceID int, text, kind string) {
	token, err := e.devices.SetStatus(deviceID, text, kind)
	if err != nil {
		return
	}
	e.publishStatus(deviceID)
	if kind == "ready" {
		return
	}
	e.clock.AfterFunc(e.cfg.StatusResetAfter, func() {
		if e.devices.ResetStatus(deviceID, token) {
			e.publishStatus(deviceID)
		}
	})
}

func (e *Engine) publishStatus(deviceID int) {
	for _, st := range e.devices.Snapshot() {
		if st.ID == deviceID {
			e.publish(eventbus.TypeDeviceStatus, st)
			return
		}
	}
}

func (e *Engine) publish(typ string, data any) {
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// Assignment is the bus payload for TypeDeviceUpdated.
type Assignment struct {
	DeviceID int
	Message  *message.Message
}

// Cleared is the bus payload for TypeDeviceCleared.
type Cleared struct {
	DeviceID int
}

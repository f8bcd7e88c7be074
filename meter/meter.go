package meter

import (
	"fmt"
	"math/rand"

	"github.com/alexfrt/smartgridsim/sim"
)

type readingEvent struct {
	*sim.EventBase
}

type arrivalEvent struct {
	*sim.EventBase
	flowID uint32
	sentAt sim.VTimeInSec
	size   uint64
}

// Meter periodically sends readings to the head-end.
type Meter struct {
	name    string
	flowID  uint32
	engine  sim.EventScheduler
	headEnd *HeadEnd
	cfg     Config
	rng     *rand.Rand

	txPackets   uint64
	txBytes     uint64
	lostPackets uint64
	firstTx     sim.VTimeInSec
	lastTx      sim.VTimeInSec
}

// Name returns the name of the meter.
func (m *Meter) Name() string {
	return m.name
}

// Handle sends one reading and schedules the next one.
func (m *Meter) Handle(e sim.Event) error {
	if _, ok := e.(readingEvent); !ok {
		return fmt.Errorf("meter %s cannot handle %T", m.name, e)
	}

	now := e.Time()
	if m.txPackets == 0 {
		m.firstTx = now
	}

	m.txPackets++
	m.txBytes += m.cfg.PacketSize
	m.lastTx = now

	if err := m.send(now); err != nil {
		return err
	}

	next := now + m.cfg.Interval
	if m.txPackets >= m.cfg.MaxPackets || next >= m.cfg.StopTime {
		return nil
	}

	return m.engine.Schedule(readingEvent{sim.NewEventBase(next, m)})
}

func (m *Meter) send(now sim.VTimeInSec) error {
	if m.cfg.LossRate > 0 && m.rng.Float64() < m.cfg.LossRate {
		m.lostPackets++
		return nil
	}

	delay := m.cfg.LinkLatency
	if m.cfg.LinkJitter > 0 {
		delay += sim.VTimeInSec(m.rng.Float64()) * m.cfg.LinkJitter
	}

	return m.engine.Schedule(arrivalEvent{
		EventBase: sim.NewEventBase(now+delay, m.headEnd),
		flowID:    m.flowID,
		sentAt:    now,
		size:      m.cfg.PacketSize,
	})
}

type flowRx struct {
	rxPackets uint64
	rxBytes   uint64
	firstRx   sim.VTimeInSec
	lastRx    sim.VTimeInSec
	delaySum  sim.VTimeInSec
	jitterSum sim.VTimeInSec
	lastDelay sim.VTimeInSec
}

// HeadEnd collects the readings of all the meters.
type HeadEnd struct {
	flows map[uint32]*flowRx
}

// NewHeadEnd creates a HeadEnd.
func NewHeadEnd() *HeadEnd {
	return &HeadEnd{flows: make(map[uint32]*flowRx)}
}

// Handle records the arrival of a reading.
func (h *HeadEnd) Handle(e sim.Event) error {
	evt, ok := e.(arrivalEvent)
	if !ok {
		return fmt.Errorf("head-end cannot handle %T", e)
	}

	f := h.flows[evt.flowID]
	if f == nil {
		f = &flowRx{firstRx: evt.Time()}
		h.flows[evt.flowID] = f
	}

	delay := evt.Time() - evt.sentAt
	if f.rxPackets > 0 {
		d := delay - f.lastDelay
		if d < 0 {
			d = -d
		}
		f.jitterSum += d
	}

	f.rxPackets++
	f.rxBytes += evt.size
	f.lastRx = evt.Time()
	f.delaySum += delay
	f.lastDelay = delay

	return nil
}

// Received returns the number of readings received from a flow.
func (h *HeadEnd) Received(flowID uint32) uint64 {
	f := h.flows[flowID]
	if f == nil {
		return 0
	}

	return f.rxPackets
}

package meter

import (
	"fmt"
	"math/rand"

	"github.com/alexfrt/smartgridsim/flowstats"
	"github.com/alexfrt/smartgridsim/sim"
)

// Scenario is a set of meters reporting to one head-end.
type Scenario struct {
	Meters  []*Meter
	HeadEnd *HeadEnd
}

// Build creates the meters and schedules their first readings.
func Build(engine sim.EventScheduler, cfg Config) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.MaxPackets == 0 {
		return &Scenario{HeadEnd: NewHeadEnd()}, nil
	}

	s := &Scenario{HeadEnd: NewHeadEnd()}
	rng := rand.New(rand.NewSource(cfg.Seed))

	for i := 0; i < cfg.Meters; i++ {
		m := &Meter{
			name:    fmt.Sprintf("Meter[%d]", i),
			flowID:  uint32(i + 1),
			engine:  engine,
			headEnd: s.HeadEnd,
			cfg:     cfg,
			rng:     rng,
		}
		s.Meters = append(s.Meters, m)

		err := engine.Schedule(readingEvent{sim.NewEventBase(cfg.StartTime, m)})
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func toNano(t sim.VTimeInSec) flowstats.NanoTime {
	return flowstats.NanoTime(float64(t) * 1e9)
}

// FlowStats returns one flow per meter. It must not be called while the
// engine is running.
func (s *Scenario) FlowStats() []flowstats.Flow {
	flows := make([]flowstats.Flow, 0, len(s.Meters))

	for _, m := range s.Meters {
		f := flowstats.Flow{
			FlowID:            m.flowID,
			TimeFirstTxPacket: toNano(m.firstTx),
			TimeLastTxPacket:  toNano(m.lastTx),
			TxBytes:           m.txBytes,
			TxPackets:         m.txPackets,
			LostPackets:       m.lostPackets,
		}

		if rx := s.HeadEnd.flows[m.flowID]; rx != nil {
			f.TimeFirstRxPacket = toNano(rx.firstRx)
			f.TimeLastRxPacket = toNano(rx.lastRx)
			f.DelaySum = toNano(rx.delaySum)
			f.JitterSum = toNano(rx.jitterSum)
			f.LastDelay = toNano(rx.lastDelay)
			f.RxBytes = rx.rxBytes
			f.RxPackets = rx.rxPackets
		}

		flows = append(flows, f)
	}

	return flows
}

package meter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/alexfrt/smartgridsim/flowstats"
	"github.com/alexfrt/smartgridsim/meter"
	"github.com/alexfrt/smartgridsim/sim"
)

var _ = Describe("Config", func() {
	It("should accept the default config", func() {
		Expect(meter.DefaultConfig().Validate()).To(Succeed())
	})

	DescribeTable("invalid configs",
		func(mutate func(c *meter.Config)) {
			cfg := meter.DefaultConfig()
			mutate(&cfg)
			Expect(cfg.Validate()).To(MatchError(meter.ErrInvalidConfig))
		},
		Entry("no meters", func(c *meter.Config) { c.Meters = 0 }),
		Entry("zero interval", func(c *meter.Config) { c.Interval = 0 }),
		Entry("stop before start", func(c *meter.Config) { c.StopTime = c.StartTime }),
		Entry("negative latency", func(c *meter.Config) { c.LinkLatency = -1 }),
		Entry("loss above one", func(c *meter.Config) { c.LossRate = 1.5 }),
	)
})

var _ = Describe("Scenario", func() {
	var (
		engine *sim.SerialEngine
		cfg    meter.Config
	)

	run := func() *meter.Scenario {
		s, err := meter.Build(engine, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Run()).To(Succeed())
		return s
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		cfg = meter.DefaultConfig()
		cfg.StopTime = 10
	})

	It("should send one reading per interval until the stop time", func() {
		s := run()

		flows := s.FlowStats()
		Expect(flows).To(HaveLen(1))

		f := flows[0]
		Expect(f.FlowID).To(Equal(uint32(1)))
		Expect(f.TxPackets).To(Equal(uint64(9)))
		Expect(f.RxPackets).To(Equal(uint64(9)))
		Expect(f.TxBytes).To(Equal(uint64(9 * 1500)))
		Expect(f.LostPackets).To(BeZero())
		Expect(float64(f.TimeFirstTxPacket)).To(BeNumerically("~", 1e9, 1))
		Expect(float64(f.TimeLastTxPacket)).To(BeNumerically("~", 9e9, 1))
		Expect(float64(f.DelaySum)).To(BeNumerically("~", 9*2e6, 1))
		Expect(float64(f.LastDelay)).To(BeNumerically("~", 2e6, 1))
		Expect(float64(f.JitterSum)).To(BeNumerically("~", 0, 1))
		Expect(engine.Now()).To(BeNumerically("~", 9.002, 1e-9))
	})

	It("should stop after the maximum number of packets", func() {
		cfg.MaxPackets = 3

		s := run()

		Expect(s.FlowStats()[0].TxPackets).To(Equal(uint64(3)))
	})

	It("should schedule nothing without packets to send", func() {
		cfg.MaxPackets = 0

		s := run()

		Expect(s.Meters).To(BeEmpty())
		Expect(engine.Pending()).To(BeZero())
	})

	It("should count dropped readings as lost", func() {
		cfg.LossRate = 1

		s := run()

		f := s.FlowStats()[0]
		Expect(f.LostPackets).To(Equal(uint64(9)))
		Expect(f.RxPackets).To(BeZero())
		Expect(s.HeadEnd.Received(1)).To(BeZero())
	})

	It("should report one flow per meter", func() {
		cfg.Meters = 3

		s := run()

		flows := s.FlowStats()
		Expect(flows).To(HaveLen(3))
		for i, f := range flows {
			Expect(f.FlowID).To(Equal(uint32(i + 1)))
			Expect(f.RxPackets).To(Equal(uint64(9)))
		}
	})

	It("should accumulate jitter and be reproducible for a seed", func() {
		cfg.LinkJitter = 0.001

		first := run().FlowStats()[0]

		engine = sim.NewSerialEngine()
		second := run().FlowStats()[0]

		Expect(float64(first.JitterSum)).To(BeNumerically(">", 0))
		Expect(float64(first.JitterSum)).To(BeNumerically("<", 8*1e6))
		Expect(float64(first.DelaySum)).To(BeNumerically(">=", 9*2e6))
		Expect(second).To(Equal(first))
	})

	It("should produce statistics the trial summary understands", func() {
		trial := flowstats.ComputeTrial(run().FlowStats())

		Expect(trial.Loss).To(BeNumerically("~", 0, 1e-9))
		Expect(trial.Delay).To(BeNumerically("~", 2, 1e-6))
		Expect(trial.Jitter).To(BeNumerically("~", 0, 1e-6))
	})

	It("should reject events it does not handle", func() {
		s, err := meter.Build(engine, cfg)
		Expect(err).NotTo(HaveOccurred())

		evt := sim.NewEventBase(0, s.Meters[0])
		Expect(s.Meters[0].Handle(evt)).NotTo(Succeed())
		Expect(s.HeadEnd.Handle(evt)).NotTo(Succeed())
	})
})

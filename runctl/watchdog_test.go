package runctl

import (
	"context"
	"time"

	"github.com/alexfrt/smartgridsim/sim"
	"github.com/alexfrt/smartgridsim/wallclock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"
)

var _ = Describe("watchdog", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		clk      *wallclock.Manual
		w        *watchdog
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		clk = wallclock.NewManual(time.Unix(0, 0))
		w = &watchdog{
			ctx:         context.Background(),
			engine:      engine,
			budget:      Budget{MaxSimTime: 10, MaxRealTime: 10 * time.Second},
			interval:    time.Second,
			clock:       clk,
			logger:      logrus.StandardLogger(),
			start:       clk.Now(),
			runReturned: make(chan struct{}),
			terminated:  make(chan struct{}),
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start polling and terminate when joined", func() {
		Expect(w.State()).To(Equal(WatchdogPolling))

		go w.loop()
		w.join()

		Expect(w.State()).To(Equal(WatchdogTerminated))
		Expect(w.terminated).To(BeClosed())
		Expect(w.polls).To(BeZero())
	})

	It("should keep polling while within budget", func() {
		engine.EXPECT().Now().Return(sim.VTimeInSec(1)).Times(2)

		go w.loop()
		for i := 0; i < 2; i++ {
			Eventually(clk.Waiters).Should(Equal(1))
			clk.Advance(time.Second)
		}
		Eventually(clk.Waiters).Should(Equal(1))

		Expect(w.State()).To(Equal(WatchdogPolling))
		w.join()
		Expect(w.polls).To(Equal(2))
		Expect(w.reason).To(Equal(StopReasonNone))
	})

	It("should prefer the simulated budget when both are exceeded", func() {
		engine.EXPECT().Now().Return(sim.VTimeInSec(10))
		engine.EXPECT().RequestStop()

		go w.loop()
		Eventually(clk.Waiters).Should(Equal(1))
		clk.Advance(time.Minute)

		Eventually(w.terminated).Should(BeClosed())
		Expect(w.State()).To(Equal(WatchdogTerminated))
		Expect(w.reason).To(Equal(StopReasonSimBudget))
		close(w.runReturned)
	})

	It("should request a stop only once", func() {
		engine.EXPECT().RequestStop().Times(1)

		w.stop(StopReasonRealBudget)
		w.stop(StopReasonWatchdogFailure)

		Expect(w.State()).To(Equal(WatchdogStopping))
		Expect(w.stopRequested.Load()).To(BeTrue())
	})
})

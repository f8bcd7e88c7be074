package sim

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"
)

type tickEvent struct {
	*EventBase
}

// selfTicker keeps scheduling itself one second later and asks the engine
// to stop after stopAfter events.
type selfTicker struct {
	engine    *SerialEngine
	handled   int
	stopAfter int
}

func (h *selfTicker) Handle(e Event) error {
	h.handled++
	if h.handled == h.stopAfter {
		h.engine.RequestStop()
	}

	return h.engine.Schedule(tickEvent{NewEventBase(e.Time()+1, h)})
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	mockEvent := func(t VTimeInSec, h Handler, secondary bool) *MockEvent {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(t).AnyTimes()
		evt.EXPECT().Handler().Return(h).AnyTimes()
		evt.EXPECT().IsSecondary().Return(secondary).AnyTimes()

		return evt
	}

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(4.0, handler1, false)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(3.0, handler1, false)
		evt4 := mockEvent(5.0, handler1, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(Event) {
			Expect(engine.Schedule(evt3)).To(Succeed())
			Expect(engine.Schedule(evt4)).To(Succeed())
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).After(handleEvt1)

		Expect(engine.Schedule(evt1)).To(Succeed())
		Expect(engine.Schedule(evt2)).To(Succeed())

		Expect(engine.Run()).To(Succeed())
		Expect(engine.Now()).To(Equal(VTimeInSec(5.0)))
	})

	It("should consider secondary events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		handler3 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(2.0, handler1, true)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(2.0, handler3, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2)
		handleEvt3 := handler3.EXPECT().Handle(evt3)
		handler1.EXPECT().
			Handle(evt1).
			After(handleEvt2).
			After(handleEvt3)

		Expect(engine.Schedule(evt1)).To(Succeed())
		Expect(engine.Schedule(evt2)).To(Succeed())
		Expect(engine.Schedule(evt3)).To(Succeed())

		Expect(engine.Run()).To(Succeed())
	})

	It("should reject events in the past", func() {
		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().Handle(gomock.Any())
		Expect(engine.Schedule(mockEvent(3.0, handler, false))).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		err := engine.Schedule(mockEvent(1.0, handler, false))

		Expect(errors.Is(err, ErrScheduleInPast)).To(BeTrue())
	})

	It("should return handler errors", func() {
		handlerErr := errors.New("handler failed")
		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().Handle(gomock.Any()).Return(handlerErr)
		Expect(engine.Schedule(mockEvent(1.0, handler, false))).To(Succeed())

		err := engine.Run()

		Expect(err).To(MatchError(handlerErr))
	})

	It("should invoke hooks around each event", func() {
		handler := NewMockHandler(mockCtrl)
		evt := mockEvent(1.0, handler, false)
		hook := NewMockHook(mockCtrl)
		engine.AcceptHook(hook)

		before := hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(Equal(HookPosBeforeEvent))
			Expect(ctx.Item).To(Equal(evt))
		})
		handleEvt := handler.EXPECT().Handle(evt).After(before)
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(Equal(HookPosAfterEvent))
		}).After(handleEvt)

		Expect(engine.Schedule(evt)).To(Succeed())
		Expect(engine.Run()).To(Succeed())
	})

	It("should count handled events", func() {
		counter := NewEventCounter()
		engine.AcceptHook(counter)
		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().Handle(gomock.Any()).Times(10)

		for i := 0; i < 10; i++ {
			t := VTimeInSec(float64(rand.Uint64()%10) * 0.01)
			Expect(engine.Schedule(mockEvent(t, handler, i%2 == 0))).To(Succeed())
		}

		Expect(engine.Run()).To(Succeed())
		Expect(counter.Count()).To(Equal(uint64(10)))
		Expect(engine.Pending()).To(BeZero())
	})

	It("should log handled events", func() {
		logger, logs := logtest.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		engine.AcceptHook(NewEventLogger(logger))

		ticker := &selfTicker{engine: engine, stopAfter: 2}
		Expect(engine.Schedule(tickEvent{NewEventBase(1, ticker)})).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(logs.AllEntries()).To(HaveLen(2))
		Expect(logs.AllEntries()[0].Message).To(
			Equal("1.0000000000, sim.tickEvent"))
	})

	Context("when a stop is requested", func() {
		It("should return after the current event", func() {
			ticker := &selfTicker{engine: engine, stopAfter: 5}
			Expect(engine.Schedule(tickEvent{NewEventBase(1, ticker)})).To(Succeed())

			Expect(engine.Run()).To(Succeed())

			Expect(ticker.handled).To(Equal(5))
			Expect(engine.Now()).To(Equal(VTimeInSec(5)))
			Expect(engine.Pending()).To(Equal(1))
		})

		It("should honour a stop requested before Run", func() {
			ticker := &selfTicker{engine: engine, stopAfter: -1}
			Expect(engine.Schedule(tickEvent{NewEventBase(1, ticker)})).To(Succeed())

			engine.RequestStop()

			Expect(engine.Run()).To(Succeed())
			Expect(ticker.handled).To(BeZero())
		})

		It("should stop when requested from another goroutine", func() {
			ticker := &selfTicker{engine: engine, stopAfter: -1}
			Expect(engine.Schedule(tickEvent{NewEventBase(0, ticker)})).To(Succeed())

			done := make(chan error)
			go func() {
				done <- engine.Run()
			}()

			Eventually(engine.Now).Should(BeNumerically(">", 100))
			engine.RequestStop()

			Eventually(done).Should(Receive(BeNil()))
		})
	})
})

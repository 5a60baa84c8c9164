package trap

import (
	"context"
	"errors"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dispatcher", func() {
	var (
		d   *Dispatcher
		ctx context.Context
	)

	BeforeEach(func() {
		d = NewDispatcher()
		ctx = context.Background()
	})

	It("should reject traps without a handler", func() {
		err := d.Dispatch(ctx, &Frame{Trapno: 32, CPU: 1})
		Expect(err).To(MatchError(util.ErrUnhandledTrap))
		Expect(err.Error()).To(ContainSubstring("trap 32 on cpu 1"))
	})

	It("should route a trap to its handler", func() {
		var got *Frame
		d.Register(PageFault, HandlerFunc(func(_ context.Context, f *Frame) error {
			got = f
			return nil
		}))

		f := &Frame{Trapno: PageFault, FaultAddr: 0x1000}
		Expect(d.Dispatch(ctx, f)).To(Succeed())
		Expect(got).To(BeIdenticalTo(f))
	})

	It("should pass handler errors through", func() {
		boom := errors.New("boom")
		d.Register(GPFault, HandlerFunc(func(context.Context, *Frame) error { return boom }))
		Expect(d.Dispatch(ctx, &Frame{Trapno: GPFault})).To(MatchError(boom))
	})

	It("should let a later registration win", func() {
		calls := 0
		d.Register(PageFault, HandlerFunc(func(context.Context, *Frame) error { return errors.New("old") }))
		d.Register(PageFault, HandlerFunc(func(context.Context, *Frame) error { calls++; return nil }))
		Expect(d.Dispatch(ctx, &Frame{Trapno: PageFault})).To(Succeed())
		Expect(calls).To(Equal(1))
	})
})

package trap

import (
	"context"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/vm"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("PageFaultHandler", func() {
	var (
		mockCtrl *gomock.Controller
		swapper  *MockSwapper
		procs    *vm.Table
		proc     *vm.Process
		ctx      context.Context
		d        *Dispatcher
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		swapper = NewMockSwapper(mockCtrl)
		procs = vm.NewTable()
		proc = procs.Spawn("init")
		ctx = vm.WithProcess(context.Background(), proc)

		d = NewDispatcher()
		d.Register(PageFault, NewPageFaultHandler(swapper, procs, nil))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	fault := func(ctx context.Context, va util.VirtAddr) func() {
		return func() {
			_ = d.Dispatch(ctx, &Frame{Trapno: PageFault, CPU: 2, FaultAddr: va})
		}
	}

	Context("when the page is swapped out", func() {
		BeforeEach(func() {
			e, err := proc.Space.Reserve(0x3000, page.FlagUser)
			Expect(err).NotTo(HaveOccurred())
			e.Store(page.Encode(page.Swapped{Slot: 42}))
		})

		It("should swap the page in and resume", func() {
			swapper.EXPECT().SwapIn(ctx, proc.Space, util.VirtAddr(0x3000))

			err := d.Dispatch(ctx, &Frame{Trapno: PageFault, FaultAddr: 0x3abc})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("when the fault cannot be recovered", func() {
		It("should halt outside a process", func() {
			kerr := kernelPanic(fault(context.Background(), 0x1000))
			Expect(kerr).NotTo(BeNil())
			Expect(kerr.Message).To(Equal("page fault outside a process"))
			Expect(kerr).To(MatchError(util.ErrNoProcess))
		})

		It("should halt when no page table covers the address", func() {
			kerr := kernelPanic(fault(ctx, 0x5000))
			Expect(kerr).NotTo(BeNil())
			Expect(kerr.Module).To(Equal("trap"))
			Expect(kerr.Message).To(Equal("PTE not found"))
		})

		It("should halt when the page is present", func() {
			Expect(proc.Space.Map(0x6000, 0x9000, page.FlagUser)).To(Succeed())

			kerr := kernelPanic(func() {
				_ = d.Dispatch(ctx, &Frame{Trapno: PageFault, FaultAddr: 0x6000, ErrorCode: ErrCodePresent | ErrCodeWrite})
			})
			Expect(kerr).NotTo(BeNil())
			Expect(kerr.Message).To(Equal("page fault but the page is present"))
			Expect(kerr.Context).To(HaveKeyWithValue("reason", "page protection violation (write)"))
		})

		It("should halt when the entry is neither present nor swapped", func() {
			_, err := proc.Space.Reserve(0x7000, page.FlagUser|page.FlagWritable)
			Expect(err).NotTo(HaveOccurred())

			kerr := kernelPanic(fault(ctx, 0x7000))
			Expect(kerr).NotTo(BeNil())
			Expect(kerr.Message).To(Equal("unexpected page fault"))
			Expect(kerr.Context).To(HaveKeyWithValue("cpu", 2))
			Expect(kerr.Context).To(HaveKeyWithValue("reason", "read from non-present page"))
		})
	})
})

package codes

import (
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type memStore struct {
	saved   []Record
	saves   int
	failOn  int
	loadErr error
}

func (s *memStore) Load() ([]Record, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	return append([]Record(nil), s.saved...), nil
}

func (s *memStore) Save(records []Record) error {
	s.saves++
	if s.saves == s.failOn {
		return errors.New("disk full")
	}

	s.saved = append([]Record(nil), records...)

	return nil
}

func (s *memStore) Location() string {
	return "memory"
}

var _ = Describe("Formatting", func() {
	It("should pad to three digits", func() {
		Expect(FormatSequence(1)).To(Equal("001"))
		Expect(FormatSequence(7)).To(Equal("007"))
		Expect(FormatSequence(17)).To(Equal("017"))
		Expect(FormatSequence(123)).To(Equal("123"))
	})

	It("should not truncate large numbers", func() {
		Expect(FormatSequence(1000)).To(Equal("1000"))
	})

	It("should join the full code", func() {
		key := Key{Division: "XGM", Area: "D&P", Doc: "XRO"}
		Expect(FullCode(key, "042")).To(Equal("XGM-D&P-XRO-042"))
	})

	It("should parse stored sequences", func() {
		seq, err := ParseSequence("017")
		Expect(err).ToNot(HaveOccurred())
		Expect(seq).To(Equal(17))
	})

	It("should reject bad sequences", func() {
		_, err := ParseSequence("abc")
		Expect(err).To(MatchError(ErrMalformed))

		_, err = ParseSequence("000")
		Expect(err).To(MatchError(ErrMalformed))
	})
})

var _ = Describe("Allocator", func() {
	var (
		store *memStore
		a     *Allocator
	)

	BeforeEach(func() {
		store = &memStore{}
		a = NewAllocator(store)
	})

	It("should refuse to allocate before init", func() {
		_, err := a.Allocate("XGM", "XDM", "XRO")

		Expect(err).To(MatchError(ErrNotInitialized))
		Expect(a.State()).To(Equal(StateUninitialized))
	})

	It("should report the store location", func() {
		Expect(a.Location()).To(Equal("memory"))
	})

	It("should refuse to init twice", func() {
		Expect(a.Init()).To(Succeed())
		Expect(a.Init()).To(MatchError(ErrAlreadyInitialized))
	})

	It("should start empty", func() {
		Expect(a.Init()).To(Succeed())

		Expect(a.State()).To(Equal(StateReady))
		Expect(a.Records()).To(BeEmpty())
		Expect(a.Counters()).To(BeEmpty())
	})

	It("should allocate the end-to-end scenario", func() {
		Expect(a.Init()).To(Succeed())

		r, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("XGM-XDM-XRO-001"))

		r, err = a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("XGM-XDM-XRO-002"))

		r, err = a.Allocate("BBM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("BBM-XDM-XRO-001"))

		Expect(store.saved).To(HaveLen(3))
		Expect(store.saved[2]).To(Equal(r))
	})

	It("should count each key independently", func() {
		Expect(a.Init()).To(Succeed())

		keys := []Key{
			{"XGM", "XDM", "XRO"},
			{"xgm", "XDM", "XRO"},
			{"XGM", "XOG", "XRO"},
			{"XGM", "XDM", "FAR"},
		}

		for round := 1; round <= 3; round++ {
			for _, k := range keys {
				r, err := a.Allocate(k.Division, k.Area, k.Doc)
				Expect(err).ToNot(HaveOccurred())
				Expect(r.Seq).To(Equal(round))
			}
		}

		for _, k := range keys {
			Expect(a.Last(k)).To(Equal(3))
		}
	})

	It("should accept empty parts", func() {
		Expect(a.Init()).To(Succeed())

		r, err := a.Allocate("", "", "")

		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("---001"))
	})

	It("should rebuild counters from the highest sequence", func() {
		key := Key{"XGM", "XDM", "XRO"}
		store.saved = []Record{
			NewRecord(key, 4),
			NewRecord(key, 2),
			NewRecord(Key{"BBM", "XDM", "XRO"}, 1),
		}

		Expect(a.Init()).To(Succeed())

		Expect(a.Last(key)).To(Equal(4))
		Expect(a.Records()).To(HaveLen(3))

		r, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.ID).To(Equal("005"))
	})

	It("should load the same counters twice", func() {
		Expect(a.Init()).To(Succeed())
		_, _ = a.Allocate("XGM", "XDM", "XRO")
		_, _ = a.Allocate("XGM", "XDM", "XRO")
		_, _ = a.Allocate("BBM", "XDM", "XRO")

		first := NewAllocator(store)
		Expect(first.Init()).To(Succeed())
		second := NewAllocator(store)
		Expect(second.Init()).To(Succeed())

		Expect(first.Counters()).To(Equal(second.Counters()))
		Expect(first.Counters()).To(Equal(a.Counters()))
	})

	It("should wrap store load failures", func() {
		store.loadErr = fmt.Errorf("read: %w", ErrMalformed)

		err := a.Init()

		var loadErr *LoadError
		Expect(errors.As(err, &loadErr)).To(BeTrue())
		Expect(loadErr.Location).To(Equal("memory"))
		Expect(err).To(MatchError(ErrMalformed))
		Expect(a.State()).To(Equal(StateUninitialized))
	})

	It("should roll back when persisting fails", func() {
		Expect(a.Init()).To(Succeed())
		store.failOn = 2

		_, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())

		_, err = a.Allocate("XGM", "XDM", "XRO")
		var persistErr *PersistenceError
		Expect(errors.As(err, &persistErr)).To(BeTrue())
		Expect(persistErr.Key).To(Equal(Key{"XGM", "XDM", "XRO"}))

		Expect(a.Last(Key{"XGM", "XDM", "XRO"})).To(Equal(1))
		Expect(a.Records()).To(HaveLen(1))
		Expect(store.saved).To(HaveLen(1))

		r, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("XGM-XDM-XRO-002"))
	})

	It("should serialize concurrent allocations", func() {
		Expect(a.Init()).To(Succeed())

		const n = 64
		results := make(chan int, n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				r, err := a.Allocate("XGM", "XDM", "XRO")
				Expect(err).ToNot(HaveOccurred())
				results <- r.Seq
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int]bool)
		for seq := range results {
			Expect(seen[seq]).To(BeFalse())
			seen[seq] = true
		}

		Expect(seen).To(HaveLen(n))
		Expect(a.Last(Key{"XGM", "XDM", "XRO"})).To(Equal(n))
		Expect(store.saved).To(HaveLen(n))
	})

	It("should sort counters by key", func() {
		Expect(a.Init()).To(Succeed())
		_, _ = a.Allocate("XGM", "XDM", "XRO")
		_, _ = a.Allocate("BBM", "XDM", "XRO")
		_, _ = a.Allocate("BBM", "XDM", "XRO")

		Expect(a.SortedCounters()).To(Equal([]Counter{
			{Key: Key{"BBM", "XDM", "XRO"}, Last: 2},
			{Key: Key{"XGM", "XDM", "XRO"}, Last: 1},
		}))
	})
})

var _ = Describe("Allocator with mocked store", func() {
	var (
		mockCtrl *gomock.Controller
		store    *MockStore
		a        *Allocator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		store = NewMockStore(mockCtrl)
		store.EXPECT().Location().Return("codes.csv").AnyTimes()

		a = NewAllocator(store)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should pass a LoadError from the store through", func() {
		cause := &LoadError{Location: "codes.csv", Line: 3, Err: ErrMalformed}
		store.EXPECT().Load().Return(nil, cause)

		err := a.Init()

		Expect(err).To(BeIdenticalTo(cause))
		Expect(err.Error()).To(ContainSubstring("line 3"))
	})

	It("should hand the full history to the store", func() {
		existing := NewRecord(Key{"XGM", "XDM", "XRO"}, 1)
		store.EXPECT().Load().Return([]Record{existing}, nil)
		store.EXPECT().
			Save([]Record{existing, NewRecord(Key{"XGM", "XDM", "XRO"}, 2)}).
			Return(nil)

		Expect(a.Init()).To(Succeed())

		r, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Code).To(Equal("XGM-XDM-XRO-002"))
	})

	It("should not advance when the second save fails", func() {
		key := Key{"XGM", "XDM", "XRO"}
		first := NewRecord(key, 1)
		second := NewRecord(key, 2)
		writeErr := errors.New("permission denied")

		store.EXPECT().Load().Return(nil, nil)
		gomock.InOrder(
			store.EXPECT().Save([]Record{first}).Return(nil),
			store.EXPECT().Save([]Record{first, second}).Return(writeErr),
			store.EXPECT().Save([]Record{first, second}).Return(nil),
		)

		Expect(a.Init()).To(Succeed())

		_, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())

		_, err = a.Allocate("XGM", "XDM", "XRO")
		Expect(err).To(MatchError(writeErr))
		Expect(err.Error()).To(ContainSubstring("codes.csv"))

		r, err := a.Allocate("XGM", "XDM", "XRO")
		Expect(err).ToNot(HaveOccurred())
		Expect(r).To(Equal(second))
	})
})

package cache_test

import (
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/cache"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var _ = Describe("TTLCache", func() {
	const key = "Tauri-ChatGPT"

	var (
		clock *fakeClock
		c     *cache.TTLCache
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		c = cache.New(time.Minute, cache.WithClock(clock.Now))
	})

	It("reports a miss for an unknown key", func() {
		_, ok := c.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("returns the stored value until the ttl elapses", func() {
		c.Set(key, `{"version":"1.0.0"}`)

		v, ok := c.Get(key)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(`{"version":"1.0.0"}`))

		clock.Advance(time.Minute - time.Nanosecond)
		v, ok = c.Get(key)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(`{"version":"1.0.0"}`))
	})

	It("expires the entry exactly at the ttl and evicts it", func() {
		c.Set(key, "v")
		clock.Advance(time.Minute)

		_, ok := c.Get(key)
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(Equal(0))

		_, ok = c.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("restarts the ttl when a key is overwritten", func() {
		c.Set(key, "old")
		clock.Advance(45 * time.Second)
		c.Set(key, "new")
		clock.Advance(45 * time.Second)

		v, ok := c.Get(key)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("new"))
	})

	It("keeps a single entry for repeated sets of the same key", func() {
		for i := 0; i < 10; i++ {
			c.Set(key, "same")
		}

		Expect(c.Len()).To(Equal(1))
		v, ok := c.Get(key)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("same"))
	})

	It("deletes entries", func() {
		c.Set(key, "v")
		c.Delete(key)
		c.Delete("missing")

		_, ok := c.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("is safe for concurrent use", func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				c.Set(key, fmt.Sprintf("v%d", i))
				_, ok := c.Get(key)
				Expect(ok).To(BeTrue())
			}(i)
		}
		wg.Wait()

		Expect(c.Len()).To(Equal(1))
	})
})

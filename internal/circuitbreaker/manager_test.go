package circuitbreaker_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
)

var _ = Describe("Manager", func() {
	var (
		manager *circuitbreaker.Manager
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		manager = circuitbreaker.NewManager(nil)
	})

	Describe("Register", func() {
		It("should create a breaker in closed state", func() {
			cb, err := manager.Register("primary", validSettings())
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should fail on a duplicate name", func() {
			_, err := manager.Register("primary", validSettings())
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Register("primary", validSettings())
			Expect(err).To(MatchError(circuitbreaker.ErrDuplicateBreaker))
		})

		It("should reject invalid settings", func() {
			settings := validSettings()
			settings.FailureThreshold = 0
			_, err := manager.Register("primary", settings)
			Expect(err).To(HaveOccurred())
			Expect(manager.Count()).To(BeZero())
		})
	})

	Describe("Get", func() {
		It("should return the registered breaker", func() {
			registered, _ := manager.Register("primary", validSettings())

			found, err := manager.Get("primary")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeIdenticalTo(registered))
		})

		It("should fail for an unknown name", func() {
			_, err := manager.Get("missing")
			Expect(err).To(MatchError(circuitbreaker.ErrBreakerNotFound))
		})
	})

	Describe("Unregister", func() {
		It("should remove the breaker", func() {
			_, _ = manager.Register("primary", validSettings())

			Expect(manager.Unregister("primary")).To(Succeed())
			_, err := manager.Get("primary")
			Expect(err).To(MatchError(circuitbreaker.ErrBreakerNotFound))
		})

		It("should fail for an unknown name", func() {
			Expect(manager.Unregister("missing")).To(MatchError(circuitbreaker.ErrBreakerNotFound))
		})
	})

	Describe("AllStates", func() {
		It("should report every breaker's state", func() {
			_, _ = manager.Register("primary", validSettings())
			secondary, _ := manager.Register("secondary", validSettings())

			for i := 0; i < 3; i++ {
				_, _ = secondary.Call(ctx, fail)
			}

			states := manager.AllStates()
			Expect(states).To(HaveLen(2))
			Expect(states["primary"]).To(Equal(circuitbreaker.StateClosed))
			Expect(states["secondary"]).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("AllMetrics", func() {
		It("should return a snapshot per breaker", func() {
			primary, _ := manager.Register("primary", validSettings())
			_, _ = manager.Register("secondary", validSettings())

			_, _ = primary.Call(ctx, succeed)

			metrics := manager.AllMetrics()
			Expect(metrics).To(HaveLen(2))
			Expect(metrics["primary"].TotalCallsInWindow).To(Equal(1))
			Expect(metrics["secondary"].TotalCallsInWindow).To(BeZero())
		})
	})

	Describe("Reset operations", func() {
		It("should reset a single breaker by name", func() {
			primary, _ := manager.Register("primary", validSettings())
			for i := 0; i < 3; i++ {
				_, _ = primary.Call(ctx, fail)
			}
			Expect(primary.State()).To(Equal(circuitbreaker.StateOpen))

			Expect(manager.Reset("primary")).To(Succeed())
			Expect(primary.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should fail resetting an unknown name", func() {
			Expect(manager.Reset("missing")).To(MatchError(circuitbreaker.ErrBreakerNotFound))
		})

		It("should reset every breaker at once", func() {
			primary, _ := manager.Register("primary", validSettings())
			secondary, _ := manager.Register("secondary", validSettings())
			for i := 0; i < 3; i++ {
				_, _ = primary.Call(ctx, fail)
				_, _ = secondary.Call(ctx, fail)
			}

			manager.ResetAll()

			Expect(primary.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(secondary.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Names and Count", func() {
		It("should list names in sorted order", func() {
			_, _ = manager.Register("tertiary", validSettings())
			_, _ = manager.Register("primary", validSettings())
			_, _ = manager.Register("secondary", validSettings())

			Expect(manager.Names()).To(Equal([]string{"primary", "secondary", "tertiary"}))
			Expect(manager.Count()).To(Equal(3))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent registration and lookups safely", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines)

			_, _ = manager.Register("shared", validSettings())

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb, err := manager.Get("shared")
					Expect(err).NotTo(HaveOccurred())
					_, _ = cb.Call(ctx, succeed)
				}()
			}

			wg.Wait()
			Expect(manager.Count()).To(Equal(1))
		})
	})
})

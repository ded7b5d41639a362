package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkoutsos/backstop/internal/health"
)

func TestHealth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Health Suite")
}

func healthyProbe(ctx context.Context) error { return nil }

func unhealthyProbe(ctx context.Context) error { return errors.New("probe refused") }

var _ = Describe("Monitor", func() {
	var (
		ctx     context.Context
		monitor *health.Monitor
	)

	BeforeEach(func() {
		ctx = context.Background()
		monitor = health.NewMonitor(20*time.Millisecond, time.Second, nil)
	})

	Describe("CheckTier", func() {
		It("should report a passing probe as healthy", func() {
			monitor.RegisterProbe("primary", healthyProbe)
			Expect(monitor.CheckTier(ctx, "primary")).To(BeTrue())
		})

		It("should swallow probe errors and report unhealthy", func() {
			monitor.RegisterProbe("primary", unhealthyProbe)
			Expect(monitor.CheckTier(ctx, "primary")).To(BeFalse())
		})

		It("should report an unknown tier as unhealthy", func() {
			Expect(monitor.CheckTier(ctx, "missing")).To(BeFalse())
		})

		It("should bound a hanging probe with the probe timeout", func() {
			monitor = health.NewMonitor(20*time.Millisecond, 50*time.Millisecond, nil)
			monitor.RegisterProbe("slow", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})

			start := time.Now()
			Expect(monitor.CheckTier(ctx, "slow")).To(BeFalse())
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})
	})

	Describe("CheckAllTiers", func() {
		BeforeEach(func() {
			monitor.RegisterProbe("primary", healthyProbe)
			monitor.RegisterProbe("secondary", unhealthyProbe)
			monitor.RegisterProbe("tertiary", healthyProbe)
		})

		It("should return an entry for every configured tier", func() {
			results := monitor.CheckAllTiers(ctx)

			Expect(results).To(HaveLen(3))
			Expect(results["primary"]).To(BeTrue())
			Expect(results["secondary"]).To(BeFalse())
			Expect(results["tertiary"]).To(BeTrue())
		})

		It("should cache results into the status snapshot", func() {
			monitor.CheckAllTiers(ctx)

			status := monitor.Status()
			Expect(status.Tiers["primary"]).To(BeTrue())
			Expect(status.Tiers["secondary"]).To(BeFalse())
			Expect(status.AllHealthy).To(BeFalse())
			Expect(status.LastChecked["primary"]).To(BeTemporally("~", time.Now(), time.Second))
		})
	})

	Describe("Status", func() {
		It("should report all healthy when every probe passes", func() {
			monitor.RegisterProbe("primary", healthyProbe)
			monitor.RegisterProbe("secondary", healthyProbe)

			monitor.CheckAllTiers(ctx)

			Expect(monitor.Status().AllHealthy).To(BeTrue())
		})

		It("should not report all healthy before any sweep", func() {
			monitor.RegisterProbe("primary", healthyProbe)
			Expect(monitor.Status().AllHealthy).To(BeFalse())
		})
	})

	Describe("Start and Stop", func() {
		It("should poll periodically until stopped", func() {
			var checks atomic.Int32
			monitor.RegisterProbe("primary", func(ctx context.Context) error {
				checks.Add(1)
				return nil
			})

			monitor.Start(ctx)
			Eventually(func() int32 { return checks.Load() }, time.Second).Should(BeNumerically(">=", 3))

			monitor.Stop()
			settled := checks.Load()
			Consistently(func() int32 { return checks.Load() }, 100*time.Millisecond).Should(Equal(settled))
		})

		It("should be restartable after Stop", func() {
			var checks atomic.Int32
			monitor.RegisterProbe("primary", func(ctx context.Context) error {
				checks.Add(1)
				return nil
			})

			monitor.Start(ctx)
			Eventually(func() int32 { return checks.Load() }, time.Second).Should(BeNumerically(">=", 1))
			monitor.Stop()

			settled := checks.Load()
			monitor.Start(ctx)
			Eventually(func() int32 { return checks.Load() }, time.Second).Should(BeNumerically(">", settled))
			monitor.Stop()
		})

		It("should ignore a second Start while running", func() {
			monitor.RegisterProbe("primary", healthyProbe)

			monitor.Start(ctx)
			monitor.Start(ctx)
			monitor.Stop()
		})
	})

	Describe("OnChange", func() {
		It("should fire when a tier flips health state", func() {
			var flips []bool
			down := atomic.Bool{}

			monitor.RegisterProbe("primary", func(ctx context.Context) error {
				if down.Load() {
					return errors.New("down")
				}
				return nil
			})
			monitor.OnChange(func(tier string, healthy bool) {
				flips = append(flips, healthy)
			})

			monitor.CheckAllTiers(ctx)
			down.Store(true)
			monitor.CheckAllTiers(ctx)
			down.Store(false)
			monitor.CheckAllTiers(ctx)

			Expect(flips).To(Equal([]bool{true, false, true}))
		})
	})

	Describe("HTTPProbe", func() {
		It("should pass against a healthy endpoint", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/health" {
					w.WriteHeader(http.StatusOK)
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			base, err := url.Parse(server.URL)
			Expect(err).NotTo(HaveOccurred())

			probe := health.HTTPProbe(nil, base)
			Expect(probe(ctx)).To(Succeed())
		})

		It("should fail against a non-200 endpoint", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			base, err := url.Parse(server.URL)
			Expect(err).NotTo(HaveOccurred())

			probe := health.HTTPProbe(nil, base)
			Expect(probe(ctx)).NotTo(Succeed())
		})

		It("should fail when the endpoint is unreachable", func() {
			base, err := url.Parse("http://127.0.0.1:1")
			Expect(err).NotTo(HaveOccurred())

			probe := health.HTTPProbe(nil, base)
			Expect(probe(ctx)).NotTo(Succeed())
		})
	})
})

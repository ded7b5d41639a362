// Faultsim drives the fault-tolerance kernel against a deliberately
// flaky in-process backend to verify breaker, retry, and fallback
// behavior end to end.
//
// Usage:
//
//	go run faultsim.go -failure-threshold 3 -recovery-timeout 2s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
	"github.com/nkoutsos/backstop/internal/fallback"
	"github.com/nkoutsos/backstop/internal/retry"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	var (
		failureThreshold = flag.Int("failure-threshold", 3, "Failures before the primary breaker opens")
		recoveryTimeout  = flag.Duration("recovery-timeout", 2*time.Second, "Breaker recovery timeout")
		retryAttempts    = flag.Int("retry-attempts", 2, "Attempts per primary request")
		requests         = flag.Int("requests", 10, "Requests per phase")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	manager := circuitbreaker.NewManager(log)
	primaryCB, err := manager.Register("primary", circuitbreaker.Settings{
		FailureThreshold: *failureThreshold,
		RecoveryTimeout:  *recoveryTimeout,
		HalfOpenMaxCalls: 2,
		SuccessThreshold: 2,
	})
	if err != nil {
		fmt.Println(colorRed + "failed to register primary breaker: " + err.Error() + colorReset)
		os.Exit(1)
	}

	policy, err := retry.New(*retryAttempts, 50*time.Millisecond, time.Second, 2.0, false, log)
	if err != nil {
		fmt.Println(colorRed + "failed to build retry policy: " + err.Error() + colorReset)
		os.Exit(1)
	}

	var primaryDown atomic.Bool

	primaryTier := fallback.Tier{
		Name: "primary",
		Op: func(ctx context.Context) (any, error) {
			return policy.Execute(ctx, func(ctx context.Context) (any, error) {
				return primaryCB.Call(ctx, func(ctx context.Context) (any, error) {
					if primaryDown.Load() {
						return nil, errors.New("primary unavailable")
					}
					return "primary-result", nil
				})
			})
		},
	}
	secondaryTier := fallback.Tier{
		Name: "secondary",
		Op: func(ctx context.Context) (any, error) {
			return "secondary-result", nil
		},
	}

	handler := fallback.NewHandler(manager, log, nil)

	fmt.Println(colorCyan + "=== FAULT TOLERANCE SIMULATION ===" + colorReset)

	// PHASE 1: healthy primary
	fmt.Println(colorBlue + "--- PHASE 1: Normal Operation ---" + colorReset)
	runPhase(ctx, handler, primaryTier, secondaryTier, *requests)
	printState(manager)

	// PHASE 2: primary fails, breaker opens, traffic falls back
	fmt.Println(colorBlue + "--- PHASE 2: Primary Failure & Fallback ---" + colorReset)
	primaryDown.Store(true)
	runPhase(ctx, handler, primaryTier, secondaryTier, *requests)
	printState(manager)

	// PHASE 3: primary recovers, breaker half-opens then closes
	fmt.Println(colorBlue + "--- PHASE 3: Recovery ---" + colorReset)
	primaryDown.Store(false)
	fmt.Printf("waiting %s for recovery timeout...\n", *recoveryTimeout)
	time.Sleep(*recoveryTimeout + 100*time.Millisecond)
	runPhase(ctx, handler, primaryTier, secondaryTier, *requests)
	printState(manager)

	if cb, err := manager.Get("primary"); err == nil && cb.State() == circuitbreaker.StateClosed {
		fmt.Println(colorGreen + "OK: primary breaker closed again after recovery" + colorReset)
		return
	}
	fmt.Println(colorRed + "FAIL: primary breaker did not close after recovery" + colorReset)
	os.Exit(1)
}

func runPhase(ctx context.Context, handler *fallback.Handler, primary, secondary fallback.Tier, requests int) {
	served := make(map[string]int)

	for i := 0; i < requests; i++ {
		result, err := handler.ExecuteSequence(ctx, "simulate", []fallback.Tier{primary, secondary})
		if err != nil {
			fmt.Printf(colorRed+"  request %d: %v\n"+colorReset, i+1, err)
			continue
		}
		served[result.(string)]++
	}

	for source, count := range served {
		fmt.Printf("  %s -> %d requests\n", source, count)
	}
}

func printState(manager *circuitbreaker.Manager) {
	for name, m := range manager.AllMetrics() {
		fmt.Printf("  breaker %s: state=%s failures=%d error_rate=%.2f\n",
			name, m.State, m.FailureCount, m.ErrorRate)
	}
	fmt.Println()
}

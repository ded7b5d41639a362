package logger_test

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nkoutsos/backstop/pkg/logger"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logger Suite")
}

var _ = Describe("New", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should build a logger for every environment", func() {
		Expect(logger.New("info", false, "dev")).NotTo(BeNil())
		Expect(logger.New("info", false, "prod")).NotTo(BeNil())
	})

	It("should honor the debug level", func() {
		log := logger.New("debug", false, "dev")
		Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeTrue())
	})

	It("should suppress levels below the configured one", func() {
		log := logger.New("error", false, "prod")
		Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
		Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeFalse())
		Expect(log.Enabled(ctx, slog.LevelError)).To(BeTrue())
	})

	It("should default unknown levels to info", func() {
		log := logger.New("chatty", false, "dev")
		Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeFalse())
		Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeTrue())
	})
})

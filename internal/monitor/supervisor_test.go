package monitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"net-watchdog/internal/logfile"
	"net-watchdog/internal/monitor"
	"net-watchdog/internal/monitor/monitorfakes"
	"net-watchdog/internal/probe"
	"net-watchdog/internal/probe/probefakes"
	"net-watchdog/internal/state"
)

var _ = Describe("Supervisor", func() {
	var (
		fakeProber *probefakes.FakeProber
		store      *state.Store
		dir        string
		paths      *logfile.PathResolver
	)

	BeforeEach(func() {
		fakeProber = &probefakes.FakeProber{}
		fakeProber.ProbeReturns(probe.Result{Reachable: true, Latency: latency(12.34)}, nil)
		store = state.New([]string{"router1"})
		dir = GinkgoT().TempDir()
		var err error
		paths, err = logfile.NewPathResolver(dir, "watchdog_%Y-%m-%d.log")
		Expect(err).NotTo(HaveOccurred())
	})

	newSupervisor := func(sink monitor.LogSink) *monitor.Supervisor {
		s, err := monitor.NewScheduler(monitor.Options{
			Devices:  devices[:1],
			Interval: 20 * time.Millisecond,
			Prober:   fakeProber,
			Store:    store,
			LogPath:  paths.Path,
			Log:      sink,
		})
		Expect(err).NotTo(HaveOccurred())
		return monitor.NewSupervisor(s)
	}

	It("should run cycles until stopped", func() {
		sup := newSupervisor(logfile.NewWriter())
		Expect(sup.Start(context.Background())).To(Succeed())

		Eventually(fakeProber.ProbeCallCount).Should(BeNumerically(">=", 2))
		Expect(sup.Stop()).To(Succeed())
		Expect(sup.Done()).To(BeClosed())

		Expect(store.Snapshot()["router1"].Reachable).To(BeTrue())
		data, err := os.ReadFile(paths.Path(time.Now()))
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(len(lines)).To(BeNumerically(">=", 2))
		Expect(lines[0]).To(MatchRegexp(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] router1 \(10\.0\.0\.1\) - Reachable, Latency: 12\.34 ms$`))
	})

	It("should refuse a second start", func() {
		sup := newSupervisor(logfile.NewWriter())
		Expect(sup.Start(context.Background())).To(Succeed())
		Expect(sup.Start(context.Background())).To(HaveOccurred())
		Expect(sup.Stop()).To(Succeed())
	})

	It("should treat stop before start as a no-op", func() {
		sup := newSupervisor(logfile.NewWriter())
		Expect(sup.Stop()).To(Succeed())
		Expect(sup.Done()).To(BeNil())
	})

	It("should exit when the parent context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		sup := newSupervisor(logfile.NewWriter())
		Expect(sup.Start(ctx)).To(Succeed())
		cancel()
		Eventually(sup.Done()).Should(BeClosed())
		Expect(sup.Err()).NotTo(HaveOccurred())
	})

	It("should surface a log write failure", func() {
		sink := &monitorfakes.FakeLogSink{}
		sink.AppendReturns(&logfile.WriteError{Path: filepath.Join(dir, "x.log"), Err: errors.New("no space left on device")})

		sup := newSupervisor(sink)
		Expect(sup.Start(context.Background())).To(Succeed())
		Eventually(sup.Done()).Should(BeClosed())

		var writeErr *logfile.WriteError
		Expect(errors.As(sup.Err(), &writeErr)).To(BeTrue())
		Expect(store.Snapshot()["router1"].Reachable).To(BeTrue())
		Expect(sup.Stop()).To(MatchError(ContainSubstring("no space left on device")))
	})
})

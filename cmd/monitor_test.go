package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"net-watchdog/internal/config"
	"net-watchdog/internal/logfile"
	"net-watchdog/internal/monitor/monitorfakes"
	"net-watchdog/internal/probe"
	"net-watchdog/internal/probe/probefakes"
	"net-watchdog/internal/stream"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMonitor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Monitor Command Suite")
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Devices: map[string]string{"router1": "10.0.0.1", "switch1": "10.0.0.2"},
		Monitoring: config.MonitoringConfig{
			PingTimeout:  1,
			PingCount:    1,
			PingInterval: 5,
			PingBinary:   "ping",
		},
		Logging: config.LoggingConfig{
			Directory:      dir,
			FilenameFormat: "watchdog_%Y-%m-%d.log",
			Level:          "info",
			Format:         "text",
		},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 5000},
	}
}

var _ = Describe("Monitor Command", func() {
	var fakeProber *probefakes.FakeProber
	var fakeSink *monitorfakes.FakeLogSink
	var cfg *config.Config
	var out *bytes.Buffer

	BeforeEach(func() {
		fakeProber = &probefakes.FakeProber{}
		fakeSink = &monitorfakes.FakeLogSink{}
		cfg = testConfig(GinkgoT().TempDir())
		out = &bytes.Buffer{}
	})

	Describe("RunMonitor", func() {
		It("should print one line per device", func() {
			l := 12.34
			fakeProber.ProbeReturnsOnCall(0, probe.Result{Reachable: true, Latency: &l}, nil)
			fakeProber.ProbeReturnsOnCall(1, probe.Result{}, nil)

			wd, err := newWatchdog(cfg, fakeProber, fakeSink, nil)
			Expect(err).To(BeNil())
			Expect(RunMonitor(context.Background(), wd.scheduler, wd.store, out)).To(Succeed())

			Expect(out.String()).To(ContainSubstring("router1: Reachable, 12.34 ms\n"))
			Expect(out.String()).To(ContainSubstring("switch1: Unreachable\n"))
			Expect(out.String()).To(ContainSubstring("Checked 2 devices, 1 reachable"))

			Expect(fakeSink.AppendCallCount()).To(Equal(1))
			path, lines := fakeSink.AppendArgsForCall(0)
			Expect(filepath.Dir(path)).To(Equal(cfg.Logging.Directory))
			Expect(lines).To(HaveLen(2))
		})

		It("should report probe errors and keep going", func() {
			fakeProber.ProbeReturnsOnCall(0, probe.Result{}, &probe.Error{Address: "10.0.0.1", Err: exec.ErrNotFound})
			fakeProber.ProbeReturnsOnCall(1, probe.Result{Reachable: true}, nil)

			wd, err := newWatchdog(cfg, fakeProber, fakeSink, nil)
			Expect(err).To(BeNil())
			Expect(RunMonitor(context.Background(), wd.scheduler, wd.store, out)).To(Succeed())

			Expect(out.String()).To(ContainSubstring("router1: Unreachable\n"))
			Expect(out.String()).To(ContainSubstring("switch1: Reachable\n"))
			Expect(out.String()).To(ContainSubstring("error: device router1"))
		})

		It("should fail when the log cannot be written", func() {
			fakeSink.AppendReturns(&logfile.WriteError{Path: "x", Err: errors.New("read-only file system")})

			wd, err := newWatchdog(cfg, fakeProber, fakeSink, nil)
			Expect(err).To(BeNil())
			err = RunMonitor(context.Background(), wd.scheduler, wd.store, out)

			var writeErr *logfile.WriteError
			Expect(errors.As(err, &writeErr)).To(BeTrue())
			Expect(out.String()).To(ContainSubstring("router1: Unreachable"))
		})

		It("should write the log file with the real writer", func() {
			fakeProber.ProbeReturns(probe.Result{Reachable: true}, nil)

			wd, err := newWatchdog(cfg, fakeProber, nil, nil)
			Expect(err).To(BeNil())
			Expect(RunMonitor(context.Background(), wd.scheduler, wd.store, out)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(cfg.Logging.Directory, time.Now().Format("watchdog_2006-01-02.log")))
			Expect(err).To(BeNil())
			Expect(string(data)).To(MatchRegexp(`\] router1 \(10\.0\.0\.1\) - Reachable\n`))
		})
	})

	Describe("newWatchdog", func() {
		It("should reject an invalid log filename format", func() {
			cfg.Logging.FilenameFormat = ""
			_, err := newWatchdog(cfg, fakeProber, fakeSink, nil)
			var cfgErr *config.Error
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
		})

		It("should seed the store with every device", func() {
			wd, err := newWatchdog(cfg, fakeProber, fakeSink, nil)
			Expect(err).To(BeNil())
			Expect(wd.store.Snapshot()).To(HaveLen(2))
			Expect(wd.store.Names()).To(Equal([]string{"router1", "switch1"}))
		})
	})

	Describe("RunPing", func() {
		It("should print the raw ping lines", func() {
			script := filepath.Join(GinkgoT().TempDir(), "ping")
			Expect(os.WriteFile(script, []byte("#!/bin/sh\necho \"PING $1\"\necho 'reply 1'\n"), 0o755)).To(Succeed())
			cfg.Monitoring.PingBinary = script

			wd, err := newWatchdog(cfg, nil, fakeSink, nil)
			Expect(err).To(BeNil())
			Expect(RunPing(context.Background(), wd.streams, "router1", out)).To(Succeed())
			Expect(out.String()).To(Equal("PING 10.0.0.1\nreply 1\n"))
			Expect(wd.streams.Active()).To(Equal(0))
		})

		It("should reject an unknown device", func() {
			wd, err := newWatchdog(cfg, nil, fakeSink, nil)
			Expect(err).To(BeNil())
			err = RunPing(context.Background(), wd.streams, "ghost", out)
			Expect(errors.Is(err, stream.ErrDeviceNotFound)).To(BeTrue())
			Expect(out.Len()).To(BeZero())
		})
	})
})

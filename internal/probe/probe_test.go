package probe_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"net-watchdog/internal/probe"
)

const replyOutput = `PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.
64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=12.34 ms

--- 10.0.0.1 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms
`

var _ = Describe("Pinger", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Probe", func() {
		It("should report reachable with the parsed latency", func() {
			bin := writeScript("cat <<'EOF'\n" + replyOutput + "EOF\n")
			p := probe.New(bin, time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reachable).To(BeTrue())
			Expect(res.Latency).NotTo(BeNil())
			Expect(*res.Latency).To(BeNumerically("~", 12.34, 1e-9))
		})

		It("should report reachable without latency when no time token is printed", func() {
			bin := writeScript("echo 'reply received'\n")
			p := probe.New(bin, time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(probe.Result{Reachable: true}))
		})

		It("should report unreachable on a non-zero exit without an error", func() {
			bin := writeScript("echo '1 packets transmitted, 0 received, 100% packet loss'\nexit 1\n")
			p := probe.New(bin, time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(probe.Result{}))
		})

		It("should ignore time tokens printed by a failing ping", func() {
			bin := writeScript("echo 'time=3.0 ms'\nexit 2\n")
			p := probe.New(bin, time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			var probeErr *probe.Error
			Expect(errors.As(err, &probeErr)).To(BeTrue())
			Expect(res.Reachable).To(BeFalse())
			Expect(res.Latency).To(BeNil())
		})

		It("should return a probe error when ping cannot open its socket", func() {
			bin := writeScript("echo 'ping: socket: Operation not permitted' >&2\nexit 2\n")
			p := probe.New(bin, time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			var probeErr *probe.Error
			Expect(errors.As(err, &probeErr)).To(BeTrue())
			Expect(probeErr.Address).To(Equal("10.0.0.1"))
			Expect(err.Error()).To(ContainSubstring("Operation not permitted"))
			var exitErr *exec.ExitError
			Expect(errors.As(err, &exitErr)).To(BeTrue())
			Expect(exitErr.ExitCode()).To(Equal(2))
			Expect(res).To(Equal(probe.Result{}))
		})

		It("should pass count, timeout and address to the binary", func() {
			bin := writeScript("echo \"$@\"\n")
			p := probe.New(bin, 2*time.Second, 3)

			Expect(p.Args("10.0.0.1")).To(Equal([]string{"-c", "3", "-W", "2", "10.0.0.1"}))
			res, err := p.Probe(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reachable).To(BeTrue())
		})

		It("should treat a ping that outlives its bound as unreachable", func() {
			bin := writeScript("exec sleep 5\n")
			p := probe.New(bin, time.Second, 1)

			start := time.Now()
			res, err := p.Probe(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reachable).To(BeFalse())
			Expect(time.Since(start)).To(BeNumerically("<", 4*time.Second))
		})

		It("should return a probe error when the binary is missing", func() {
			p := probe.New(filepath.Join(GinkgoT().TempDir(), "no-such-ping"), time.Second, 1)

			res, err := p.Probe(ctx, "10.0.0.1")
			var probeErr *probe.Error
			Expect(errors.As(err, &probeErr)).To(BeTrue())
			Expect(probeErr.Address).To(Equal("10.0.0.1"))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
			Expect(res.Reachable).To(BeFalse())
		})

		It("should return a probe error when the binary is not executable", func() {
			path := filepath.Join(GinkgoT().TempDir(), "ping")
			Expect(os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644)).To(Succeed())
			p := probe.New(path, time.Second, 1)

			_, err := p.Probe(ctx, "10.0.0.1")
			var probeErr *probe.Error
			Expect(errors.As(err, &probeErr)).To(BeTrue())
		})

		It("should return the context error without running when already cancelled", func() {
			bin := writeScript("echo ran\n")
			p := probe.New(bin, time.Second, 1)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := p.Probe(cancelled, "10.0.0.1")
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("StreamCommand", func() {
		It("should run an unbounded ping against the address", func() {
			p := probe.New("ping", time.Second, 4)
			cmd := p.StreamCommand(ctx, "10.0.0.1")
			Expect(cmd.Args).To(Equal([]string{"ping", "10.0.0.1"}))
		})

		It("should produce the raw output lines of the binary", func() {
			bin := writeScript("echo L1\necho L2\n")
			p := probe.New(bin, time.Second, 1)
			out, err := p.StreamCommand(ctx, "10.0.0.1").Output()
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Split(strings.TrimSpace(string(out)), "\n")).To(Equal([]string{"L1", "L2"}))
		})
	})

	Describe("New", func() {
		It("should fall back to sane values", func() {
			p := probe.New("", 0, 0)
			Expect(p.Binary).To(Equal("ping"))
			Expect(p.Count).To(Equal(1))
			Expect(p.Timeout).To(Equal(time.Second))
		})
	})
})

var _ = DescribeTable("ParseLatency",
	func(output string, expected *float64) {
		got := probe.ParseLatency(output)
		if expected == nil {
			Expect(got).To(BeNil())
			return
		}
		Expect(got).NotTo(BeNil())
		Expect(*got).To(BeNumerically("~", *expected, 1e-9))
	},
	Entry("linux reply", replyOutput, ptr(12.34)),
	Entry("first token wins", "time=1.5 ms\ntime=9.0 ms\n", ptr(1.5)),
	Entry("unit glued to value", "64 bytes from 10.0.0.1: time=0.8ms", ptr(0.8)),
	Entry("integer value", "64 bytes from 10.0.0.1: icmp_seq=0 time=7 ms", ptr(7.0)),
	Entry("no token", "Request timeout for icmp_seq 0\n", nil),
	Entry("sub-millisecond marker is not a time= token", "64 bytes: time<1ms\n", nil),
	Entry("unparsable token is skipped", "time=abc ms\n64 bytes: time=2.25 ms\n", ptr(2.25)),
	Entry("empty output", "", nil),
)

func ptr(v float64) *float64 { return &v }

var _ = Describe("Result", func() {
	It("should clone the latency value", func() {
		r := probe.Result{Reachable: true, Latency: ptr(4)}
		c := r.Clone()
		*r.Latency = 5
		Expect(*c.Latency).To(Equal(4.0))
	})

	It("should report the exec cause through Unwrap", func() {
		err := &probe.Error{Address: "a", Err: exec.ErrNotFound}
		Expect(errors.Is(err, exec.ErrNotFound)).To(BeTrue())
		Expect(err.Error()).To(Equal("probe a: " + exec.ErrNotFound.Error()))
	})
})

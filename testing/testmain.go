// Package testing provides utilities for writing hardware-in-the-loop
// tests against a real RP2350 probe target.
package testing

import (
	"os"
	"testing"
)

// HardwareEnv gates tests that need a live probe wired to a real
// dual-hart RP2350. Package-level tests check it directly and call
// t.Skip when unset, since most of this repo is meant to run entirely
// against fakes; TestMain here only carries the shared "-test.short"
// default for whoever does have hardware attached.
const HardwareEnv = "PICO2SWD_HARDWARE"

// HaveHardware reports whether the hardware-in-the-loop tests should
// run in this process.
func HaveHardware() bool { return os.Getenv(HardwareEnv) != "" }

// TestMain should be used as TestMain for packages with hardware-gated
// tests: it defaults to -test.short when no probe is configured so the
// normal `go test ./...` run never blocks on hardware I/O.
func TestMain(m *testing.M) {
	if !HaveHardware() {
		os.Args = append(os.Args, "-test.short")
	}
	os.Exit(m.Run())
}

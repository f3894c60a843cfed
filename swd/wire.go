// Package swd implements the L1 SWD line-protocol engine (spec §4.1):
// request/ack/data bit framing, the dormant→SWD activation handshake,
// line reset, and bounded WAIT retry. It drives the wire through a
// pio.Slot, one bit per FIFO word — the real PIO state-machine program
// that turns a pushed/pulled word into an SWCLK/SWDIO toggle is the
// external, hardware-specific collaborator from spec §1/§9 and is never
// baked in here.
package swd

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rv32dbg/pico2swd/errs"
	"github.com/rv32dbg/pico2swd/pio"
)

// Config configures a new Engine. Program/WrapTarget/Wrap are the
// opaque, hardware-specific PIO instruction words (spec §1/§9) handed
// to the Backend unmodified.
type Config struct {
	Backend     pio.Backend
	Slot        pio.SlotConfig
	Program     []uint16
	WrapTarget  uint8
	Wrap        uint8
	SysClockKHz uint32
	FreqKHz     uint32

	// Turnaround is the number of quiescent SWCLK cycles inserted at
	// each bus-ownership change. Zero means the spec default of 1.
	Turnaround int

	// RetryCount bounds WAIT-ack retries. Zero means the spec default
	// of 5.
	RetryCount int

	Log *logrus.Entry
}

// Engine is the L1 Wire Engine. Not safe for concurrent use by design
// (spec §4.1 concurrency note): a session owns exactly one Engine.
type Engine struct {
	cfg       Config
	slot      pio.Slot
	freqKHz   uint32
	connected bool
	log       *logrus.Entry
}

func New(cfg Config) *Engine {
	if cfg.Turnaround == 0 {
		cfg.Turnaround = 1
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 5
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{cfg: cfg, freqKHz: cfg.FreqKHz, log: log.WithField("layer", "swd")}
}

// Connect performs the dormant→SWD activation handshake, a line reset,
// and reads IDCODE to confirm the target is alive (spec §4.1).
func (e *Engine) Connect() error {
	slot, err := e.cfg.Backend.Acquire(e.cfg.Slot)
	if err != nil {
		return errs.Wrap(errs.ResourceBusy, err, "acquire pio slot")
	}
	e.slot = slot

	if err := e.slot.LoadProgram(e.cfg.Program, e.cfg.WrapTarget, e.cfg.Wrap); err != nil {
		e.slot.Release()
		e.slot = nil
		return errs.Wrap(errs.Protocol, err, "load pio program")
	}
	e.connected = true
	e.SetFrequency(e.freqKHz)

	e.connectSequence()
	if err := e.LineReset(); err != nil {
		e.connected = false
		return err
	}
	e.SendIdleClocks(2)

	idcode, err := e.ReadDPRaw(DP_IDCODE)
	if err != nil {
		e.connected = false
		return errs.Wrap(errs.Protocol, err, "read idcode")
	}
	// ARM ADI's IDCODE designer field occupies bits [11:1].
	designer := (idcode >> 1) & 0x7FF
	if designer == 0 {
		e.connected = false
		e.log.WithField("idcode", idcode).Warn("swd idcode designer field is zero")
		return errs.New(errs.Protocol, "idcode designer field is zero")
	}
	e.log.WithField("idcode", idcode).Debug("swd connected")
	return nil
}

// SetSlotConfig overrides the PIO slot configuration to acquire on the
// next Connect, e.g. once a caller has resolved an auto-selected slot
// to a concrete (block, machine) pair (spec §5).
func (e *Engine) SetSlotConfig(cfg pio.SlotConfig) { e.cfg.Slot = cfg }

// Disconnect releases the PIO slot. Safe to call when not connected.
func (e *Engine) Disconnect() {
	if e.slot != nil {
		e.slot.Release()
		e.slot = nil
	}
	e.connected = false
}

func (e *Engine) Connected() bool { return e.connected }

// SetFrequency recomputes and applies the PIO clock divider for the
// requested SWCLK frequency (spec §6).
func (e *Engine) SetFrequency(khz uint32) {
	e.freqKHz = khz
	if e.slot != nil {
		e.slot.SetClockDiv(pio.CalcClockDiv(e.cfg.SysClockKHz, khz))
	}
}

func (e *Engine) Frequency() uint32 { return e.freqKHz }

// LineReset drives at least 50 clocks high followed by a few idle
// clocks low (spec §4.1).
func (e *Engine) LineReset() error {
	if !e.connected {
		return errs.New(errs.NotConnected, "")
	}
	if e.slot != nil {
		e.slot.Restart()
	}
	for i := 0; i < 56; i++ {
		e.pushBit(1)
	}
	e.SendIdleClocks(2)
	return nil
}

// SendIdleClocks drives n clocks with SWDIO low.
func (e *Engine) SendIdleClocks(n int) {
	for i := 0; i < n; i++ {
		e.pushBit(0)
	}
}

func (e *Engine) pushBit(b byte) {
	e.slot.Push(uint32(b & 1))
}

func (e *Engine) pullBit() byte {
	return byte(e.slot.Pull() & 1)
}

func (e *Engine) turnaround() {
	for i := 0; i < e.cfg.Turnaround; i++ {
		e.slot.Pull()
	}
}

// ReadDPRaw issues a Debug Port register read (spec §4.1/§6).
func (e *Engine) ReadDPRaw(reg Reg) (uint32, error) { return e.transact(false, true, reg, 0) }

// WriteDPRaw issues a Debug Port register write.
func (e *Engine) WriteDPRaw(reg Reg, v uint32) error {
	_, err := e.transact(false, false, reg, v)
	return err
}

// ReadAPRaw issues a raw Access Port register read against whichever AP
// is currently selected via DP SELECT. The DAP layer owns SELECT
// management; this is the bare wire-level primitive.
func (e *Engine) ReadAPRaw(reg Reg) (uint32, error) { return e.transact(true, true, reg, 0) }

// WriteAPRaw issues a raw Access Port register write.
func (e *Engine) WriteAPRaw(reg Reg, v uint32) error {
	_, err := e.transact(true, false, reg, v)
	return err
}

// transact runs one logical DP/AP transaction with the bounded WAIT
// retry policy of spec §4.1 ("retried internally up to retry_count
// times, with ~100us between attempts").
func (e *Engine) transact(apndp, rnw bool, reg Reg, value uint32) (uint32, error) {
	if !e.connected {
		return 0, errs.New(errs.NotConnected, "")
	}

	var lastWait error
	for attempt := 0; attempt <= e.cfg.RetryCount; attempt++ {
		result, a, err := e.rawTransact(apndp, rnw, reg, value)
		if err != nil {
			return 0, err
		}
		switch a {
		case ackOK:
			return result, nil
		case ackWAIT:
			lastWait = errs.New(errs.Wait, "WAIT ack")
			e.log.Debug("swd WAIT, retrying")
			sleepMicros(100)
			continue
		case ackFAULT:
			return 0, errs.New(errs.Fault, "FAULT ack")
		}
	}
	return 0, errs.Wrap(errs.Timeout, lastWait, "WAIT retry budget exhausted")
}

// rawTransact performs exactly one request/ack/data exchange with no
// retry, per spec §4.1's bit-exact framing.
func (e *Engine) rawTransact(apndp, rnw bool, reg Reg, value uint32) (result uint32, a ack, err error) {
	req := requestByte(apndp, rnw, reg)
	for i := 0; i < 8; i++ {
		e.pushBit((req >> i) & 1)
	}
	e.turnaround()

	var ackBits uint8
	for i := 0; i < 3; i++ {
		ackBits |= e.pullBit() << i
	}
	decoded, ok := decodeAck(ackBits)
	if !ok {
		e.LineReset()
		e.log.WithField("ackBits", ackBits).Warn("swd malformed ack")
		return 0, 0, errs.New(errs.Protocol, "malformed ack")
	}
	if decoded != ackOK {
		e.turnaround()
		return 0, decoded, nil
	}

	if rnw {
		var data uint32
		for i := 0; i < 32; i++ {
			data |= uint32(e.pullBit()) << i
		}
		parityBit := e.pullBit()
		e.turnaround()
		if parityBit != evenParity32(data) {
			e.log.WithField("data", data).Warn("swd data parity mismatch")
			return 0, decoded, errs.New(errs.Parity, "data parity mismatch")
		}
		return data, decoded, nil
	}

	e.turnaround()
	for i := 0; i < 32; i++ {
		e.pushBit(byte((value >> i) & 1))
	}
	e.pushBit(evenParity32(value))
	return 0, decoded, nil
}

func sleepMicros(us int) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

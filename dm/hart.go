package dm

import (
	"time"

	"github.com/rv32dbg/pico2swd/debug"
	"github.com/rv32dbg/pico2swd/errs"
)

// hartState mirrors spec §3's "Hart state": halt_state_known marks
// whether halted is trustworthy without re-querying DMSTATUS; the GPR
// mirror is separately validated by cacheValid.
type hartState struct {
	haltStateKnown bool
	halted         bool
	cacheValid     bool
	gprs           [32]uint32
}

// invalidate drops hart's GPR mirror. Every caller has already run
// checkHart; the bounds check here is a debug-only backstop against a
// caller that adds a new call site and forgets it.
func (d *DM) invalidate(hart int) {
	debug.Assert(hart >= 0 && hart < NumHarts, "invalidate: hart index out of range")
	d.harts[hart].cacheValid = false
}

// IsHalted answers from cached state only (Open Question 1, spec §9):
// this session never forces a DMSTATUS read to answer is_halted. Use
// RefreshHaltState when a definitive answer is required.
func (d *DM) IsHalted(hart int) (bool, error) {
	if err := d.checkInitialized(); err != nil {
		return false, err
	}
	if err := d.checkHart(hart); err != nil {
		return false, err
	}
	h := &d.harts[hart]
	if !h.haltStateKnown {
		return false, errs.New(errs.InvalidState, "halt state unknown, call RefreshHaltState")
	}
	return h.halted, nil
}

// RefreshHaltState forces a DMSTATUS read against the selected hart
// and updates the cached halt_state_known/halted fields.
func (d *DM) RefreshHaltState(hart int) (bool, error) {
	if err := d.checkInitialized(); err != nil {
		return false, err
	}
	if err := d.checkHart(hart); err != nil {
		return false, err
	}
	if err := d.selectHart(hart, 0); err != nil {
		return false, err
	}
	status, err := d.readReg(regDMSTATUS)
	if err != nil {
		return false, err
	}
	halted := status&dmstatusALLHALTED != 0
	d.harts[hart].halted = halted
	d.harts[hart].haltStateKnown = true
	return halted, nil
}

// Halt requests a hart halt (spec §4.3). AlreadyHalted is informational
// per spec §7: callers that use Halt as a guard must accept both nil
// and an AlreadyHalted error.
func (d *DM) Halt(hart int) error {
	if err := d.checkInitialized(); err != nil {
		return err
	}
	if err := d.checkHart(hart); err != nil {
		return err
	}
	h := &d.harts[hart]
	if h.haltStateKnown && h.halted {
		d.log.WithField("hart", hart).Debug("already halted")
		return errs.New(errs.AlreadyHalted, "")
	}

	if err := d.selectHart(hart, dmcontrolHALTREQ); err != nil {
		return err
	}
	const iters, interval = 10, 10 * time.Millisecond
	for i := 0; i < iters; i++ {
		status, err := d.readReg(regDMSTATUS)
		if err != nil {
			return err
		}
		if status&dmstatusALLHALTED != 0 {
			h.halted = true
			h.haltStateKnown = true
			h.cacheValid = false
			d.log.WithField("hart", hart).Debug("halted")
			return nil
		}
		time.Sleep(interval)
	}
	return errs.New(errs.Timeout, "halt: allhalted not observed")
}

// Resume is a no-op if the hart is known running (spec §4.3).
func (d *DM) Resume(hart int) error {
	if err := d.checkInitialized(); err != nil {
		return err
	}
	if err := d.checkHart(hart); err != nil {
		return err
	}
	h := &d.harts[hart]
	if h.haltStateKnown && !h.halted {
		return nil
	}

	if err := d.selectHart(hart, dmcontrolRESUMEREQ); err != nil {
		return err
	}
	const iters, interval = 10, 10 * time.Millisecond
	for i := 0; i < iters; i++ {
		status, err := d.readReg(regDMSTATUS)
		if err != nil {
			return err
		}
		if status&dmstatusALLRUNNING != 0 {
			h.halted = false
			h.haltStateKnown = true
			h.cacheValid = false
			return nil
		}
		time.Sleep(interval)
	}
	return errs.New(errs.Timeout, "resume: allrunning not observed")
}

// Step executes exactly one instruction on an already-halted hart
// (spec §4.3), via DCSR.step rather than any hardware single-step
// request line.
func (d *DM) Step(hart int) error {
	if err := d.checkInitialized(); err != nil {
		return err
	}
	if err := d.checkHart(hart); err != nil {
		return err
	}
	h := &d.harts[hart]
	if !h.haltStateKnown || !h.halted {
		return errs.New(errs.NotHalted, "step requires a halted hart")
	}
	if err := d.selectHart(hart, 0); err != nil {
		return err
	}

	dcsr, err := d.readCSRViaProgbuf(hart, csrDCSR)
	if err != nil {
		return err
	}
	if err := d.writeCSRViaProgbuf(hart, csrDCSR, dcsr|(1<<2)); err != nil {
		return err
	}

	if err := d.selectHart(hart, 0); err != nil {
		return err
	}
	if err := d.selectHart(hart, dmcontrolRESUMEREQ); err != nil {
		return err
	}

	const iters, interval = 10, 10 * time.Millisecond
	stepped := false
	for i := 0; i < iters; i++ {
		status, rerr := d.readReg(regDMSTATUS)
		if rerr != nil {
			return rerr
		}
		if status&dmstatusALLHALTED != 0 {
			stepped = true
			break
		}
		time.Sleep(interval)
	}
	// Restore original DCSR whether or not allhalted was observed (a
	// failed DMSTATUS read above returns without restoring), per spec
	// §4.3.
	if werr := d.writeCSRViaProgbuf(hart, csrDCSR, dcsr); werr != nil {
		return werr
	}
	if !stepped {
		return errs.New(errs.Timeout, "step: allhalted not observed")
	}
	h.haltStateKnown = true
	h.halted = true
	h.cacheValid = false
	return nil
}

// Reset asserts and deasserts ndmreset per spec §4.3, driving the hart
// back to its architectural reset vector.
func (d *DM) Reset(hart int, haltOnReset bool) error {
	if err := d.checkInitialized(); err != nil {
		return err
	}
	if err := d.checkHart(hart); err != nil {
		return err
	}
	h := &d.harts[hart]

	var extra uint32 = dmcontrolNDMRESET
	if haltOnReset {
		extra |= dmcontrolHALTREQ
	}
	if err := d.selectHart(hart, extra); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.selectHart(hart, 0); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	h.cacheValid = false
	h.haltStateKnown = false

	if !haltOnReset {
		h.halted = false
		h.haltStateKnown = true
		return nil
	}

	const iters, interval = 10, 10 * time.Millisecond
	for i := 0; i < iters; i++ {
		status, err := d.readReg(regDMSTATUS)
		if err != nil {
			return err
		}
		if status&dmstatusALLHALTED != 0 {
			h.halted = true
			h.haltStateKnown = true
			return nil
		}
		time.Sleep(interval)
	}
	return errs.New(errs.Timeout, "reset: allhalted not observed")
}

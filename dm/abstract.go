package dm

import (
	"time"

	"github.com/rv32dbg/pico2swd/errs"
)

// waitNotBusy polls ABSTRACTCS.busy, clearing any latched cmderr and
// returning AbstractCmd if one is seen (spec §4.3/§7: "AbstractCmd
// automatically clears the underlying cmderr sticky field before
// returning").
func (d *DM) waitNotBusy() error {
	const iters, interval = 100, 100 * time.Microsecond
	var last uint32
	for i := 0; i < iters; i++ {
		cs, err := d.readReg(regABSTRACTCS)
		if err != nil {
			return err
		}
		last = cs
		if cs&abstractcsBUSY == 0 {
			break
		}
		time.Sleep(interval)
	}
	if last&abstractcsBUSY != 0 {
		return errs.New(errs.Timeout, "abstract command still busy")
	}
	if cmderr := last & abstractcsCMDERRMASK; cmderr != 0 {
		if err := d.writeReg(regABSTRACTCS, abstractcsCLEAR); err != nil {
			return err
		}
		return errs.New(errs.AbstractCmd, "abstract command cmderr set")
	}
	return nil
}

func gprCommand(regno uint32, write, postexec bool) uint32 {
	c := cmdAarsize32 | cmdTransferBit | cmdRegnoGPR0 | regno
	if write {
		c |= cmdWriteBit
	}
	if postexec {
		c |= cmdPostexecBit
	}
	return c
}

// ReadReg reads GPR x[idx] on hart via the abstract command path
// (spec §4.3). x0 always reads as 0 without touching the DM.
func (d *DM) ReadReg(hart, idx int) (uint32, error) {
	if err := d.checkInitialized(); err != nil {
		return 0, err
	}
	if err := d.checkHart(hart); err != nil {
		return 0, err
	}
	if idx < 0 || idx > 31 {
		return 0, errs.New(errs.InvalidParam, "gpr index out of range")
	}
	h := &d.harts[hart]
	if !h.haltStateKnown || !h.halted {
		return 0, errs.New(errs.NotHalted, "")
	}
	if idx == x0 {
		return 0, nil
	}

	if err := d.selectHart(hart, 0); err != nil {
		return 0, err
	}
	if err := d.writeReg(regCOMMAND, gprCommand(uint32(idx), false, false)); err != nil {
		return 0, err
	}
	if err := d.waitNotBusy(); err != nil {
		return 0, err
	}
	v, err := d.readReg(regDATA0)
	if err != nil {
		return 0, err
	}
	if d.cacheEnabled {
		h.gprs[idx] = v
	}
	return v, nil
}

// WriteReg writes GPR x[idx]. Writes to x0 are accepted and discarded
// (spec §8: "writes to x0 have no effect").
func (d *DM) WriteReg(hart, idx int, v uint32) error {
	if err := d.checkInitialized(); err != nil {
		return err
	}
	if err := d.checkHart(hart); err != nil {
		return err
	}
	if idx < 0 || idx > 31 {
		return errs.New(errs.InvalidParam, "gpr index out of range")
	}
	h := &d.harts[hart]
	if !h.haltStateKnown || !h.halted {
		return errs.New(errs.NotHalted, "")
	}
	if idx == x0 {
		return nil
	}

	if err := d.selectHart(hart, 0); err != nil {
		return err
	}
	if err := d.writeReg(regDATA0, v); err != nil {
		return err
	}
	if err := d.writeReg(regCOMMAND, gprCommand(uint32(idx), true, false)); err != nil {
		return err
	}
	if err := d.waitNotBusy(); err != nil {
		return err
	}
	if d.cacheEnabled {
		h.gprs[idx] = v
	}
	return nil
}

// ReadAllRegs populates all 32 GPRs and marks the mirror valid if
// caching is enabled (spec §4.3 "Read-all-GPRs").
func (d *DM) ReadAllRegs(hart int) ([32]uint32, error) {
	var out [32]uint32
	for i := 1; i < 32; i++ {
		v, err := d.ReadReg(hart, i)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	if d.cacheEnabled {
		d.harts[hart].cacheValid = true
		d.harts[hart].gprs = out
	}
	return out, nil
}

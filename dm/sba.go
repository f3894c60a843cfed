package dm

import "github.com/rv32dbg/pico2swd/errs"

// sbaInit verifies a bus master is present, clears sticky errors, and
// configures 32-bit read-on-address-write mode (spec §4.4).
func (d *DM) sbaInit() error {
	sbcs, err := d.readReg(regSBCS)
	if err != nil {
		return err
	}
	if sbasizeOf(sbcs) == 0 {
		d.log.Warn("sba: no system bus master present, SBA path disabled")
		d.sbaInitialized = false
		return nil
	}
	if err := d.writeReg(regSBCS, sbcsSBERRORCLEAR); err != nil {
		return err
	}
	if err := d.writeReg(regSBCS, sbcsSBACCESS32|sbcsSBREADONADDR); err != nil {
		return err
	}
	d.sbaInitialized = true
	d.log.Debug("sba initialised")
	return nil
}

func (d *DM) SBAInitialized() bool { return d.sbaInitialized }

// SBARead32 triggers a non-intrusive 32-bit read via the DM's system
// bus master (spec §4.4). No polling is performed; a caller that
// suspects a sticky error should call SBACheckErrors.
func (d *DM) SBARead32(addr uint32) (uint32, error) {
	if !d.sbaInitialized {
		return 0, errs.New(errs.NotInitialized, "sba not initialised")
	}
	if addr&0x3 != 0 {
		return 0, errs.New(errs.Alignment, "sba read address not 4-byte aligned")
	}
	if err := d.writeReg(regSBADDRESS0, addr); err != nil {
		return 0, err
	}
	return d.readReg(regSBDATA0)
}

// SBAWrite32 triggers a non-intrusive 32-bit write. Per spec §4.4,
// SBA bypasses the hart's caches and MPU/PMP; callers are responsible
// for any cache maintenance this implies.
func (d *DM) SBAWrite32(addr, v uint32) error {
	if !d.sbaInitialized {
		return errs.New(errs.NotInitialized, "sba not initialised")
	}
	if addr&0x3 != 0 {
		return errs.New(errs.Alignment, "sba write address not 4-byte aligned")
	}
	if err := d.writeReg(regSBADDRESS0, addr); err != nil {
		return err
	}
	return d.writeReg(regSBDATA0, v)
}

// SBACheckErrors surfaces and clears any sticky SBCS.sberror bits
// accumulated by unpolled writes/reads (Open Question 2, spec §9: SBA
// writes are not polled here; this is the offered batch-check path).
func (d *DM) SBACheckErrors() error {
	sbcs, err := d.readReg(regSBCS)
	if err != nil {
		return err
	}
	if sbcs&sbcsSBERRORMASK == 0 {
		return nil
	}
	if err := d.writeReg(regSBCS, sbcsSBERRORCLEAR); err != nil {
		return err
	}
	return errs.New(errs.Fault, "sba sticky error")
}

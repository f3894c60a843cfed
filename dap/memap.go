package dap

import (
	"github.com/rv32dbg/pico2swd/errs"
	"github.com/rv32dbg/pico2swd/swd"
)

// ReadMem32 performs the MEM-AP TAR/DRW/RDBUFF 32-bit memory read used
// by the DM driver to reach DM registers (spec §4.2). addr must be
// 4-byte aligned.
func (d *DAP) ReadMem32(apsel uint8, addr uint32) (uint32, error) {
	if addr&0x3 != 0 {
		return 0, errs.New(errs.Alignment, "mem32 read address not 4-byte aligned")
	}
	if err := d.WriteAP(apsel, swd.AP_TAR, addr); err != nil {
		return 0, err
	}
	return d.ReadAP(apsel, swd.AP_DRW)
}

// WriteMem32 performs the MEM-AP TAR/DRW write, flushing the posted
// write with an RDBUFF read (spec §4.2). addr must be 4-byte aligned.
func (d *DAP) WriteMem32(apsel uint8, addr, v uint32) error {
	if addr&0x3 != 0 {
		return errs.New(errs.Alignment, "mem32 write address not 4-byte aligned")
	}
	if err := d.WriteAP(apsel, swd.AP_TAR, addr); err != nil {
		return err
	}
	return d.WriteAP(apsel, swd.AP_DRW, v)
}

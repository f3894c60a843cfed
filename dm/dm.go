// Package dm implements the L3 RISC-V Debug Module driver (spec §4.3):
// DM initialisation, hart selection, the halt/resume/step/reset state
// machine, abstract commands, program-buffer execution, and the SBA
// non-intrusive memory path, plus the per-hart halt state and GPR cache
// (hart.go). It is the highest layer in this module; sub-word memory
// access, code upload and tracing are not implemented here.
package dm

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rv32dbg/pico2swd/dap"
	"github.com/rv32dbg/pico2swd/errs"
	"github.com/rv32dbg/pico2swd/swd"
)

// dapPort is the L2 surface the DM layer depends on. *dap.DAP satisfies
// it; tests wire a fake wire-level engine underneath a real *dap.DAP so
// the activation handshake's bank-cache behavior is genuinely exercised
// rather than assumed.
type dapPort interface {
	ReadMem32(apsel uint8, addr uint32) (uint32, error)
	WriteMem32(apsel uint8, addr, v uint32) error
	ReadAP(apsel uint8, reg swd.Reg) (uint32, error)
	WriteAP(apsel uint8, reg swd.Reg, v uint32) error
	WriteDPDirect(reg swd.Reg, v uint32) error
}

// NumHarts is the fixed size of the per-hart table (spec §9: "two harts
// today, architectural headroom for up to 1024").
const NumHarts = 2

// DM drives the Debug Module over a dapPort. One DM per Target session.
type DM struct {
	dap dapPort
	log *logrus.Entry

	initialized    bool
	sbaInitialized bool
	cacheEnabled   bool

	harts [NumHarts]hartState
}

func New(dap dapPort, log *logrus.Entry) *DM {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &DM{dap: dap, log: log.WithField("layer", "dm"), cacheEnabled: true}
}

func (d *DM) readReg(addr uint32) (uint32, error) {
	return d.dap.ReadMem32(RISCVAPSel, addr)
}

func (d *DM) writeReg(addr, v uint32) error {
	return d.dap.WriteMem32(RISCVAPSel, addr, v)
}

// Init performs the undocumented target-specific activation handshake
// (spec §4.3). It reproduces the exact bank-cache/hardware divergence
// the original probe exploits: a direct (cache-bypassing) SELECT write
// switches the AP to bank 1 while the cache still believes bank 0 is
// selected, so the ordinary cached WriteAP/ReadAP calls that follow
// address AP_CSW's bank-0 offset but land on the undocumented register
// aliased there in bank 1. On success it marks the DM initialised,
// zeroes per-hart state, and initialises SBA.
func (d *DM) Init() error {
	if err := d.dap.WriteDPDirect(swd.DP_SELECT, dap.SelectValue(RISCVAPSel, 0)); err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: select bank 0")
	}
	if err := d.dap.WriteAP(RISCVAPSel, swd.AP_CSW, 0xA2000002); err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: configure CSW")
	}
	if err := d.dap.WriteAP(RISCVAPSel, swd.AP_TAR, regDMCONTROL); err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: point TAR at DMCONTROL")
	}

	// Switch to bank 1 without going through selectBank: the cache
	// keeps believing bank 0 is selected, so the activation writes
	// below reach the undocumented bank-1 register through the CSW
	// alias instead of re-selecting bank 1 explicitly.
	if err := d.dap.WriteDPDirect(swd.DP_SELECT, dap.SelectValue(RISCVAPSel, 1)); err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: select bank 1")
	}

	steps := []uint32{0x00000000, 0x00000001, 0x07FFFFC1}
	for _, v := range steps {
		if err := d.dap.WriteAP(RISCVAPSel, swd.AP_CSW, v); err != nil {
			return errs.Wrap(errs.Protocol, err, "dm init: activation step")
		}
		time.Sleep(50 * time.Millisecond)
	}

	status, err := d.dap.ReadAP(RISCVAPSel, swd.AP_CSW)
	if err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: read activation status")
	}
	if status != dmInitMagic {
		return errs.New(errs.InvalidState, "dm init: unexpected activation status")
	}
	// Restore bank 0 so subsequent ordinary register accesses see the
	// AP in its normal addressing mode.
	if err := d.dap.WriteDPDirect(swd.DP_SELECT, dap.SelectValue(RISCVAPSel, 0)); err != nil {
		return errs.Wrap(errs.Protocol, err, "dm init: restore bank 0")
	}

	for i := range d.harts {
		d.harts[i] = hartState{}
	}
	d.initialized = true
	d.log.Debug("dm initialised")
	return d.sbaInit()
}

func (d *DM) IsInitialized() bool { return d.initialized }

func (d *DM) checkInitialized() error {
	if !d.initialized {
		return errs.New(errs.NotInitialized, "")
	}
	return nil
}

func (d *DM) checkHart(hart int) error {
	if hart < 0 || hart >= NumHarts {
		return errs.New(errs.InvalidParam, "hart index out of range")
	}
	return nil
}

func errNotHalted() error          { return errs.New(errs.NotHalted, "") }
func errInvalidParam(s string) error { return errs.New(errs.InvalidParam, s) }

// selectHart writes DMCONTROL with dmactive=1, hartsel=hart, plus any
// extra flags, as required before any hart-dependent access (spec
// §4.3 "Hart selection").
func (d *DM) selectHart(hart int, extra uint32) error {
	return d.writeReg(regDMCONTROL, dmcontrolDMACTIVE|dmcontrolHartsel(hart)|extra)
}

func (d *DM) EnableCache(enable bool) {
	d.cacheEnabled = enable
	if !enable {
		for i := range d.harts {
			d.invalidate(i)
		}
	}
}

// InvalidateCache drops hart's GPR mirror without disturbing its halt
// state (spec §3/§9).
func (d *DM) InvalidateCache(hart int) error {
	if err := d.checkHart(hart); err != nil {
		return err
	}
	d.invalidate(hart)
	return nil
}

// Package dap implements the L2 DAP Engine (spec §4.2): it frames
// Access Port accesses as SELECT-cached Debug Port transactions, and
// owns debug-domain power management and sticky-error clearing.
package dap

import (
	"time"

	juju "github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/rv32dbg/pico2swd/errs"
	"github.com/rv32dbg/pico2swd/swd"
)

// wireEngine is the L1 surface the DAP layer depends on. *swd.Engine
// satisfies it; tests supply a fake.
type wireEngine interface {
	ReadDPRaw(reg swd.Reg) (uint32, error)
	WriteDPRaw(reg swd.Reg, v uint32) error
	ReadAPRaw(reg swd.Reg) (uint32, error)
	WriteAPRaw(reg swd.Reg, v uint32) error
}

// CTRL/STAT bits (spec §6).
const (
	ctrlstatCDBGPWRUPREQ uint32 = 1 << 28
	ctrlstatCDBGPWRUPACK uint32 = 1 << 29
	ctrlstatCSYSPWRUPREQ uint32 = 1 << 30
	ctrlstatCSYSPWRUPACK uint32 = 1 << 31
	ctrlstatSTICKYERR    uint32 = 1 << 5
	ctrlstatWDATAERR     uint32 = 1 << 7
	ctrlstatSTICKYORUN   uint32 = 1 << 1
	ctrlstatSTICKYCMP    uint32 = 1 << 4
)

const selectCtrlselConst = 0xD // bits [11:8] of SELECT, non-standard but required (spec §4.2)

// DAP is the L2 engine. Caches (apsel, bank, ctrlsel) to avoid redundant
// SELECT writes, and invalidates that cache any time SELECT is written
// outside selectBank (spec §3 DAP state invariant).
type DAP struct {
	wire wireEngine
	log  *logrus.Entry

	powered      bool
	haveSelected bool
	curAPSel     uint8
	curBank      uint8
	curCtrlsel   uint8
}

func New(wire wireEngine, log *logrus.Entry) *DAP {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &DAP{wire: wire, log: log.WithField("layer", "dap")}
}

func (d *DAP) ReadDP(reg swd.Reg) (uint32, error) { return d.wire.ReadDPRaw(reg) }

func (d *DAP) WriteDP(reg swd.Reg, v uint32) error {
	if reg == swd.DP_SELECT {
		// All SELECT writes must flow through selectBank so the cache
		// stays truthful (spec §3).
		d.haveSelected = false
	}
	return d.wire.WriteDPRaw(reg, v)
}

// WriteDPDirect issues a raw DP register write without touching the
// AP-bank cache, unlike WriteDP. The undocumented DM activation
// handshake (spec §4.3) relies on deliberately diverging the cache
// from hardware this way: a direct SELECT write changes which bank
// the wire actually addresses while selectBank still believes the
// previous bank is current, so the next WriteAP/ReadAP at a bank-0
// offset lands on the bank-1 register aliased there instead.
func (d *DAP) WriteDPDirect(reg swd.Reg, v uint32) error {
	return d.wire.WriteDPRaw(reg, v)
}

// SelectValue builds this part's non-standard DP_SELECT encoding
// (spec §4.2/§6): [15:12]=apsel, [11:8]=0xD, [7:4]=bank, [0]=ctrlsel.
func SelectValue(apsel, bank uint8) uint32 {
	const ctrlsel = 1
	return uint32(apsel)<<12 | uint32(selectCtrlselConst)<<8 | uint32(bank)<<4 | ctrlsel
}

// selectBank writes SELECT only if (apsel, bank, ctrlsel=1) isn't
// already cached (spec §4.2 step 1-2).
func (d *DAP) selectBank(apsel uint8, reg swd.Reg) error {
	bank := uint8((reg >> 4) & 0xF)
	const ctrlsel = 1
	if d.haveSelected && d.curAPSel == apsel && d.curBank == bank && d.curCtrlsel == ctrlsel {
		return nil
	}
	value := uint32(apsel)<<12 | uint32(selectCtrlselConst)<<8 | uint32(bank)<<4 | uint32(ctrlsel)
	if err := d.wire.WriteDPRaw(swd.DP_SELECT, value); err != nil {
		return err
	}
	d.haveSelected = true
	d.curAPSel, d.curBank, d.curCtrlsel = apsel, bank, ctrlsel
	return nil
}

// ReadAP reads an AP register, pipelined: the actual value trails by
// one transaction and is retrieved from DP RDBUFF (spec §4.2 step 3).
func (d *DAP) ReadAP(apsel uint8, reg swd.Reg) (uint32, error) {
	if err := d.selectBank(apsel, reg); err != nil {
		return 0, errs.Wrap(errs.Protocol, err, "select AP bank")
	}
	if _, err := d.wire.ReadAPRaw(reg); err != nil {
		return 0, juju.Annotate(err, "dap: read ap")
	}
	v, err := d.wire.ReadDPRaw(swd.DP_RDBUFF)
	return v, juju.Annotate(err, "dap: read rdbuff")
}

// WriteAP writes an AP register and flushes the posted-write pipeline
// with an RDBUFF read, surfacing any latched FAULT (spec §4.2 step 4).
func (d *DAP) WriteAP(apsel uint8, reg swd.Reg, v uint32) error {
	if err := d.selectBank(apsel, reg); err != nil {
		return errs.Wrap(errs.Protocol, err, "select AP bank")
	}
	if err := d.wire.WriteAPRaw(reg, v); err != nil {
		return juju.Annotate(err, "dap: write ap")
	}
	_, err := d.wire.ReadDPRaw(swd.DP_RDBUFF)
	return juju.Annotate(err, "dap: flush rdbuff")
}

// PowerUp brings up the debug and system power domains, polling for
// both acknowledgments (spec §4.2).
func (d *DAP) PowerUp() error {
	if err := d.wire.WriteDPRaw(swd.DP_CTRLSTAT, 0); err != nil {
		return err
	}
	if err := d.wire.WriteDPRaw(swd.DP_CTRLSTAT, ctrlstatCDBGPWRUPREQ|ctrlstatCSYSPWRUPREQ); err != nil {
		return err
	}

	const maxIters = 10
	for i := 0; i < maxIters; i++ {
		v, err := d.wire.ReadDPRaw(swd.DP_CTRLSTAT)
		if err != nil {
			return err
		}
		if v&ctrlstatCDBGPWRUPACK != 0 && v&ctrlstatCSYSPWRUPACK != 0 {
			d.powered = true
			d.log.Debug("debug domains powered up")
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return errs.New(errs.Timeout, "power-up ack not observed")
}

func (d *DAP) IsPowered() bool { return d.powered }

// ClearErrors write-1-to-clears the sticky error bits in CTRL/STAT
// (spec §4.2).
func (d *DAP) ClearErrors() error {
	return d.wire.WriteDPRaw(swd.DP_CTRLSTAT, ctrlstatSTICKYERR|ctrlstatWDATAERR|ctrlstatSTICKYORUN|ctrlstatSTICKYCMP)
}

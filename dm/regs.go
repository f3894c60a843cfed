package dm

// RISCVAPSel is the Access Port slot wired to the RISC-V debug module's
// APB bridge (spec §6: "0xA = RISC-V APB (the one used)").
const RISCVAPSel uint8 = 0xA

// DM register offsets, byte-addressed (spec §6).
const (
	regDATA0      uint32 = 0x10
	regDMCONTROL  uint32 = 0x40
	regDMSTATUS   uint32 = 0x44
	regABSTRACTCS uint32 = 0x58
	regCOMMAND    uint32 = 0x5C
	regPROGBUF0   uint32 = 0x80
	regPROGBUF1   uint32 = 0x84
	regSBCS       uint32 = 0xE0
	regSBADDRESS0 uint32 = 0xE4
	regSBDATA0    uint32 = 0xF0
)

// DMCONTROL bits (spec §6).
const (
	dmcontrolDMACTIVE  uint32 = 1 << 0
	dmcontrolNDMRESET  uint32 = 1 << 1
	dmcontrolRESUMEREQ uint32 = 1 << 30
	dmcontrolHALTREQ   uint32 = 1 << 31
)

func dmcontrolHartsel(hart int) uint32 { return uint32(hart) << 16 }

// DMSTATUS bits (spec §6).
const (
	dmstatusALLHALTED  uint32 = 1 << 9
	dmstatusALLRUNNING uint32 = 1 << 11
)

// ABSTRACTCS bits (spec §6).
const (
	abstractcsBUSY      uint32 = 1 << 12
	abstractcsCMDERRMASK uint32 = 0x7 << 8
	abstractcsCLEAR     uint32 = 0x700 // W1C cmderr
)

// Abstract command encoding (spec §6).
const (
	cmdTransferBit uint32 = 1 << 17
	cmdWriteBit    uint32 = 1 << 16
	cmdPostexecBit uint32 = 1 << 18
	cmdAarsize32   uint32 = 2 << 20
	cmdRegnoGPR0   uint32 = 0x1000
)

// SBCS bits (spec §6).
const (
	sbcsSBACCESS32    uint32 = 2 << 17
	sbcsSBREADONADDR  uint32 = 1 << 20
	sbcsSBERRORMASK   uint32 = 0x7 << 12
	sbcsSBERRORCLEAR  uint32 = 0x7 << 12
	sbcsSBASIZEMASK   uint32 = 0x7F << 5
)

func sbasizeOf(sbcs uint32) uint32 { return (sbcs & sbcsSBASIZEMASK) >> 5 }

// CSRs accessed via program buffer (spec §4.3).
const (
	csrDCSR uint16 = 0x7b0
	csrDPC  uint16 = 0x7b1
)

const (
	x0 = 0
	x8 = 8 // s0, scratch register for program-buffer operand transfer
)

// dmInitMagic is the DM status value dm_init must observe to consider
// the undocumented activation handshake successful (spec §4.3).
const dmInitMagic uint32 = 0x04010001

// Package nst implements the functional model of the NST
// neural-streaming tensor accelerator: the command descriptor, the
// five-level hardware loop nest with its three address generation
// units, and the nine fused floating-point kernels evaluated against
// the tightly-coupled data memory.
package nst

import "fmt"

// Hardware geometry. These mirror the RTL parameters and must not be
// changed independently of them.
const (
	NumHwLoops  = 5
	HwLoopWidth = 16
	NumAgus     = 3

	OpCodeWidth    = 4
	LoopLevelWidth = 3
)

// OpCode selects one of the nine fused kernels. The values match the
// hardware command encoding.
type OpCode uint8

const (
	OpMac OpCode = iota
	OpVAddSub
	OpVMult
	OpOuterP
	OpMaxMin
	OpThTst
	OpMask
	OpMaskMac
	OpCopy

	NumOpCodes
)

// String returns a printable mnemonic for logging and job dumps.
func (op OpCode) String() string {
	switch op {
	case OpMac:
		return "MAC"
	case OpVAddSub:
		return "VADDSUB"
	case OpVMult:
		return "VMULT"
	case OpOuterP:
		return "OUTERP"
	case OpMaxMin:
		return "MAXMIN"
	case OpThTst:
		return "THTST"
	case OpMask:
		return "MASK"
	case OpMaskMac:
		return "MASKMAC"
	case OpCopy:
		return "COPY"
	default:
		return fmt.Sprintf("opcode_%d", uint8(op))
	}
}

// Init value selectors. Values of three and above clear the target
// register instead of loading it through an AGU.
const (
	InitWithAgu0 uint8 = 0
	InitWithAgu1 uint8 = 1
	InitWithAgu2 uint8 = 2
	InitWithZero uint8 = 3
)

// Polarity values. The meaning is opcode-local: subtraction for the
// accumulating kernels, comparison direction for the predicated ones.
const (
	PosPolarity = false
	NegPolarity = true
)

// Interrupt configuration values for the staged command word.
const (
	IrqCfgNone uint8 = 0
	IrqCfgCmd  uint8 = 1
	IrqCfgWb   uint8 = 2
)

// auxFunc values for MAC, VADDSUB, VMULT and OUTERP.
const (
	MacAuxStd  uint8 = 0
	MacAuxRelu uint8 = 1
)

// auxFunc values for MAXMIN.
const (
	MaxMinAuxStd uint8 = 0
	MaxMinAuxArg uint8 = 1
)

// auxFunc values for THTST. BinOut may be or'ed with the compare modes.
const (
	CmpEq  uint8 = 0
	CmpLt  uint8 = 1
	CmpLe  uint8 = 2
	BinOut uint8 = 4
)

// auxFunc values for MASK and MASKMAC. CmpCnt selects the internal
// iteration counter as comparison operand.
const (
	CmpCnt uint8 = 4
)

// auxFunc values for COPY.
const (
	CopyAuxRepl uint8 = 0
	CopyAuxVect uint8 = 1
)

// Descriptor is the complete description of one NST command: the
// opcode with its modifiers, the loop-nest levels and bounds, and the
// AGU programming. It is immutable for the duration of a run.
type Descriptor struct {
	OpCode   OpCode
	InitSel  uint8
	AuxFunc  uint8
	Polarity bool

	InitLevel  uint8
	InnerLevel uint8
	OuterLevel uint8

	// LoopBound holds inclusive upper bounds; level k iterates
	// LoopBound[k]+1 times.
	LoopBound [NumHwLoops]uint32

	// AguOff holds initial byte addresses, AguStride the signed byte
	// stride applied to each AGU when the loop at that level advances.
	AguOff    [NumAgus]uint32
	AguStride [NumAgus][NumHwLoops]int32

	// Optional AGU range check, asserted at every loop-level entry.
	CheckTcdmAddrs bool
	TcdmLow        uint32
	TcdmHigh       uint32
}

// Validate checks the structural invariants of the descriptor. It must
// be called (and pass) before any memory access of a run.
func (d *Descriptor) Validate() error {
	if d.OpCode >= NumOpCodes {
		return fmt.Errorf("nst: unknown opcode %d", uint8(d.OpCode))
	}
	if d.InitLevel < d.InnerLevel {
		return fmt.Errorf("nst: initLevel %d < innerLevel %d", d.InitLevel, d.InnerLevel)
	}
	if d.OuterLevel < d.InnerLevel {
		return fmt.Errorf("nst: outerLevel %d < innerLevel %d", d.OuterLevel, d.InnerLevel)
	}
	if d.OuterLevel < d.InitLevel {
		return fmt.Errorf("nst: outerLevel %d < initLevel %d", d.OuterLevel, d.InitLevel)
	}
	if d.OuterLevel > NumHwLoops {
		return fmt.Errorf("nst: outerLevel %d exceeds %d hardware loops", d.OuterLevel, NumHwLoops)
	}
	for k, bound := range d.LoopBound {
		if bound >= 1<<HwLoopWidth {
			return fmt.Errorf("nst: loop bound %d at level %d exceeds %d bits", bound, k, HwLoopWidth)
		}
	}
	return nil
}

// CmdWord packs the descriptor command fields into the 32-bit command
// word written to the command register, with the given interrupt
// configuration.
func (d *Descriptor) CmdWord(irqCfg uint8) uint32 {
	loopLevels := uint32(d.OuterLevel&0x7) << (2*LoopLevelWidth + OpCodeWidth)
	loopLevels |= uint32(d.InnerLevel&0x7) << (LoopLevelWidth + OpCodeWidth)
	loopLevels |= uint32(d.InitLevel&0x7) << OpCodeWidth

	var polarity uint32
	if d.Polarity {
		polarity = 1
	}

	cmd := polarity
	cmd <<= 2
	cmd |= uint32(irqCfg & 0x3)
	cmd <<= 3
	cmd |= uint32(d.AuxFunc & 0x7)
	cmd <<= 2
	cmd |= uint32(d.InitSel & 0x3)
	cmd <<= 3*LoopLevelWidth + OpCodeWidth
	cmd |= uint32(d.OpCode) | loopLevels
	return cmd
}

// initZero reports whether the init selector requests a cleared
// register rather than an AGU load.
func (d *Descriptor) initZero() bool {
	return d.InitSel >= InitWithZero
}

package nst

import (
	"fmt"

	"ntx/src/fp32"
)

// Ntx is one accelerator instance: a staging area for the next command
// descriptor plus the machine-state register file of the current run.
// An instance is single-threaded; the TCDM handed to Execute is assumed
// to be exclusively owned for the duration of the run.
type Ntx struct {
	desc   Descriptor
	irqCfg uint8
	irqReg bool

	prepCmd uint32

	// machine state, reset at the start of every run
	mem  *Tcdm
	agu  [NumAgus]uint32
	accu fp32.Accu
	alu  uint32
	cnt  uint32
	idx  uint32
}

// NewNtx constructs an idle accelerator instance.
func NewNtx() *Ntx {
	return &Ntx{}
}

// kernel is the three-phase contract shared by the nine opcodes. The
// set is closed; dispatch happens once per run in newKernel.
type kernel interface {
	init()
	execute()
	store()
}

// StageLoopNest programs the loop nest from an absolute formulation:
// counts holds the per-level iteration counts (elements, not bound-1)
// and elemStride the per-AGU, per-level strides in elements. The
// absolute strides are converted into the incremental byte strides the
// AGUs consume: each level's stride is taken relative to the cumulative
// displacement of a full sweep of the levels below it.
//
// Counts must be nonzero and below 2^16 for every staged level; a
// violation is a host programming error and panics.
func (n *Ntx) StageLoopNest(
	initLevel, innerLevel, outerLevel uint8,
	counts [NumHwLoops]uint32,
	elemStride [NumAgus][NumHwLoops]int32,
) {
	if initLevel < innerLevel || outerLevel < innerLevel ||
		outerLevel < initLevel || outerLevel > NumHwLoops {
		panic(fmt.Errorf("nst: invalid loop levels init=%d inner=%d outer=%d",
			initLevel, innerLevel, outerLevel))
	}

	n.desc.InitLevel = initLevel
	n.desc.InnerLevel = innerLevel
	n.desc.OuterLevel = outerLevel

	// levels above the staged nest read back as zero
	n.desc.LoopBound = [NumHwLoops]uint32{}
	for k := uint8(0); k < outerLevel; k++ {
		if counts[k] == 0 || counts[k] >= 1<<HwLoopWidth {
			panic(fmt.Errorf("nst: loop count %d at level %d", counts[k], k))
		}
		n.desc.LoopBound[k] = counts[k] - 1
	}

	for o := 0; o < NumAgus; o++ {
		carried := int32(0)
		for s := uint8(0); s < outerLevel; s++ {
			// convert to byte addresses
			n.desc.AguStride[o][s] = (elemStride[o][s] - carried) << 2
			carried += (int32(counts[s]) - 1) * elemStride[o][s]
		}
	}
}

// StageAguOffs programs the initial byte addresses of the three AGUs.
func (n *Ntx) StageAguOffs(off0, off1, off2 uint32) {
	n.desc.AguOff[0] = off0
	n.desc.AguOff[1] = off1
	n.desc.AguOff[2] = off2
}

// StageCmd prepares the command word locally. Use IssueCmd to run it.
func (n *Ntx) StageCmd(op OpCode, initSel, auxFunc, irqCfg uint8, polarity bool) {
	n.desc.OpCode = op
	n.desc.InitSel = initSel
	n.desc.AuxFunc = auxFunc
	n.desc.Polarity = polarity
	n.irqCfg = irqCfg
	n.prepCmd = n.desc.CmdWord(irqCfg)
}

// SetTcdmBaseCheck arms the per-iteration AGU range assertion for
// subsequently staged commands.
func (n *Ntx) SetTcdmBaseCheck(low, high uint32) {
	n.desc.CheckTcdmAddrs = true
	n.desc.TcdmLow = low
	n.desc.TcdmHigh = high
}

// Descriptor returns a copy of the staged descriptor.
func (n *Ntx) Descriptor() Descriptor {
	return n.desc
}

// CmdWord returns the packed command word of the last StageCmd.
func (n *Ntx) CmdWord() uint32 {
	return n.prepCmd
}

// HasIrq reports whether an interrupt is pending.
func (n *Ntx) HasIrq() bool {
	return n.irqReg
}

// ClrIrq clears all pending interrupts.
func (n *Ntx) ClrIrq() {
	n.irqReg = false
}

// AluState returns the scalar ALU register after a run.
func (n *Ntx) AluState() uint32 {
	return n.alu
}

// CntState returns the iteration counter after a run.
func (n *Ntx) CntState() uint32 {
	return n.cnt
}

// IdxState returns the index latch after a run.
func (n *Ntx) IdxState() uint32 {
	return n.idx
}

// IssueCmd runs the staged command against the given TCDM and latches
// the interrupt flag according to the staged configuration.
func (n *Ntx) IssueCmd(mem *Tcdm) error {
	if err := n.Execute(n.desc, mem); err != nil {
		return err
	}
	n.irqReg = n.irqCfg > 0
	return nil
}

// Execute validates the descriptor and evaluates it. Machine state is
// reset unconditionally first: the accumulator is cleared and the
// ALU, counter and index registers zeroed, regardless of opcode (VMULT
// depends on the clear). On a range-check failure memory effects up to
// the failing iteration remain committed; there is no rollback.
func (n *Ntx) Execute(d Descriptor, mem *Tcdm) error {
	if err := d.Validate(); err != nil {
		return err
	}

	n.desc = d
	n.mem = mem
	n.agu = d.AguOff
	n.accu.Clear()
	n.alu = 0
	n.cnt = 0
	n.idx = 0

	op, err := n.newKernel()
	if err != nil {
		return err
	}
	err = n.runLoops(uint32(d.OuterLevel), op, true)
	n.mem = nil
	return err
}

// newKernel dispatches the staged opcode to its kernel.
func (n *Ntx) newKernel() (kernel, error) {
	switch n.desc.OpCode {
	case OpMac:
		return &macOp{n}, nil
	case OpVAddSub:
		return &vAddSubOp{n}, nil
	case OpVMult:
		return &vMultOp{n}, nil
	case OpOuterP:
		return &outerPOp{n}, nil
	case OpMaxMin:
		return &maxMinOp{n}, nil
	case OpThTst:
		return &thTstOp{n: n}, nil
	case OpMask:
		return &maskOp{n: n}, nil
	case OpMaskMac:
		return &maskMacOp{n: n}, nil
	case OpCopy:
		return &copyOp{n}, nil
	default:
		return nil, fmt.Errorf("nst: unknown opcode %d", uint8(n.desc.OpCode))
	}
}

// runLoops is the recursive loop-nest engine. At each level it fires
// init when the level matches initLevel, the kernel body at level zero
// (or another counted loop with inclusive bounds), store when the level
// matches innerLevel, and finally advances all AGUs by the level's
// stride - except after the last iteration of the level, which keeps
// the cursors at the start of the next outer tile.
func (n *Ntx) runLoops(level uint32, op kernel, isLast bool) error {
	if n.desc.CheckTcdmAddrs {
		for o := 0; o < NumAgus; o++ {
			if n.agu[o] < n.desc.TcdmLow || n.agu[o] > n.desc.TcdmHigh {
				return fmt.Errorf("nst: agu %d at 0x%08x outside tcdm window [0x%08x, 0x%08x]",
					o, n.agu[o], n.desc.TcdmLow, n.desc.TcdmHigh)
			}
		}
	}

	if uint32(n.desc.InitLevel) == level {
		op.init()
	}

	if level == 0 {
		op.execute()
	} else {
		bound := n.desc.LoopBound[level-1]
		for k := uint32(0); k <= bound; k++ {
			if err := n.runLoops(level-1, op, k == bound); err != nil {
				return err
			}
		}
	}

	if uint32(n.desc.InnerLevel) == level {
		op.store()
	}

	if level < NumHwLoops && !isLast {
		for o := 0; o < NumAgus; o++ {
			n.agu[o] += uint32(n.desc.AguStride[o][level])
		}
	}
	return nil
}

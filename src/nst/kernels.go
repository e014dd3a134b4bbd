package nst

import "ntx/src/fp32"

// The nine opcode kernels. Each implements the init/execute/store
// contract fired by the loop-nest engine; the predicated kernels carry
// their comparison latch and the operand address latched at execute.
//
// Comparison convention: the streamed element is tested against the
// value held in the ALU register (CmpEq: elem == alu, CmpLt:
// elem > alu, CmpLe: elem >= alu), then the result is inverted by the
// polarity bit. Comparisons operate on the FP32 patterns interpreted
// as IEEE-754 reals.

// loadInit returns the init value selected by the descriptor: the word
// under the selected AGU, or zero when the selector requests a clear.
func (n *Ntx) loadInit() uint32 {
	if n.desc.initZero() {
		return fp32.ZeroVal
	}
	return n.mem.Load(n.agu[n.desc.InitSel])
}

// MAC: fused multiply-accumulate reduction ----------------------------

type macOp struct {
	n *Ntx
}

func (k *macOp) init() {
	if k.n.desc.initZero() {
		k.n.accu.Clear()
		return
	}
	x := k.n.mem.Load(k.n.agu[k.n.desc.InitSel])
	fp32.Mac(x, fp32.OneVal, true, false, false, &k.n.accu)
}

func (k *macOp) execute() {
	opA := k.n.mem.Load(k.n.agu[0])
	opB := k.n.mem.Load(k.n.agu[1])
	fp32.Mac(opA, opB, false, k.n.desc.Polarity, false, &k.n.accu)
}

func (k *macOp) store() {
	k.n.storeAccu()
}

// storeAccu renders the accumulator and writes it through AGU 2,
// clamping negative results to positive zero when the ReLU aux bit is
// set. Shared by the four accumulating kernels.
func (n *Ntx) storeAccu() {
	res := fp32.Mac(fp32.ZeroVal, fp32.ZeroVal, false, false, true, &n.accu)
	if n.desc.AuxFunc != 0 && fp32.Sign(res) {
		res = fp32.ZeroVal
	}
	n.mem.Store(n.agu[2], res)
}

// VADDSUB: vector addition and subtraction ----------------------------

type vAddSubOp struct {
	n *Ntx
}

func (k *vAddSubOp) init() {
	if k.n.desc.initZero() {
		k.n.accu.Clear()
		return
	}
	// polarity negates the preload: result = +/-init + sum(A)
	x := k.n.mem.Load(k.n.agu[k.n.desc.InitSel])
	fp32.Mac(x, fp32.OneVal, true, k.n.desc.Polarity, false, &k.n.accu)
}

func (k *vAddSubOp) execute() {
	opA := k.n.mem.Load(k.n.agu[0])
	fp32.Mac(opA, fp32.OneVal, false, false, false, &k.n.accu)
}

func (k *vAddSubOp) store() {
	k.n.storeAccu()
}

// VMULT: elementwise multiply -----------------------------------------

type vMultOp struct {
	n *Ntx
}

// init is a no-op: each execute starts a fresh product, and the
// executor clears the accumulator at run start.
func (k *vMultOp) init() {}

func (k *vMultOp) execute() {
	opA := k.n.mem.Load(k.n.agu[0])
	opB := k.n.mem.Load(k.n.agu[1])
	fp32.Mac(opA, opB, true, k.n.desc.Polarity, false, &k.n.accu)
}

func (k *vMultOp) store() {
	k.n.storeAccu()
}

// OUTERP: outer product / scaled accumulation -------------------------

type outerPOp struct {
	n *Ntx
}

func (k *outerPOp) init() {
	k.n.alu = k.n.loadInit()
	k.n.accu.Clear()
}

func (k *outerPOp) execute() {
	opA := k.n.mem.Load(k.n.agu[0])
	fp32.Mac(opA, k.n.alu, true, k.n.desc.Polarity, false, &k.n.accu)
}

func (k *outerPOp) store() {
	k.n.storeAccu()
}

// MAXMIN: running max/min with optional arg-index output --------------

type maxMinOp struct {
	n *Ntx
}

func (k *maxMinOp) init() {
	k.n.alu = k.n.loadInit()
	k.n.cnt = 0
}

func (k *maxMinOp) execute() {
	opB := k.n.mem.Load(k.n.agu[1])

	// polarity one tracks the maximum; the strict compare keeps the
	// earliest occurrence on ties
	tst := (fp32.ToFloat(opB) > fp32.ToFloat(k.n.alu)) != !k.n.desc.Polarity
	if tst {
		k.n.alu = opB
		k.n.idx = k.n.cnt
	}
	k.n.cnt++
}

func (k *maxMinOp) store() {
	if k.n.desc.AuxFunc != 0 {
		// ARG form: the index is written verbatim as an integer pattern
		k.n.mem.Store(k.n.agu[2], k.n.idx)
	} else {
		k.n.mem.Store(k.n.agu[2], k.n.alu)
	}
}

// THTST: thresholding and testing -------------------------------------

type thTstOp struct {
	n       *Ntx
	tst     bool
	opBAddr uint32
}

func (k *thTstOp) init() {
	k.n.alu = k.n.loadInit()
}

func (k *thTstOp) execute() {
	k.opBAddr = k.n.agu[1]
	opB := fp32.ToFloat(k.n.mem.Load(k.opBAddr))
	alu := fp32.ToFloat(k.n.alu)

	switch k.n.desc.AuxFunc & 0x3 {
	case CmpEq:
		k.tst = (opB == alu) != k.n.desc.Polarity
	case CmpLt:
		k.tst = (opB > alu) != k.n.desc.Polarity
	case CmpLe:
		k.tst = (opB >= alu) != k.n.desc.Polarity
	default:
		k.tst = false
	}
}

func (k *thTstOp) store() {
	var res uint32
	if k.n.desc.AuxFunc&BinOut != 0 {
		// binary output
		res = fp32.ZeroVal
		if k.tst {
			res = fp32.OneVal
		}
	} else {
		// thresholding output
		res = k.n.alu
		if k.tst {
			res = k.n.mem.Load(k.opBAddr)
		}
	}
	k.n.mem.Store(k.n.agu[2], res)
}

// MASK: conditional masking -------------------------------------------

type maskOp struct {
	n       *Ntx
	tst     bool
	opAAddr uint32
}

func (k *maskOp) init() {
	k.n.alu = k.n.loadInit()
	k.n.cnt = 0
}

func (k *maskOp) execute() {
	k.opAAddr = k.n.agu[0]
	k.tst = k.n.maskPredicate(k.n.agu[1])
	k.n.cnt++
}

func (k *maskOp) store() {
	res := fp32.ZeroVal
	if k.tst {
		res = k.n.mem.Load(k.opAAddr)
	}
	k.n.mem.Store(k.n.agu[2], res)
}

// maskPredicate evaluates the MASK/MASKMAC comparison for the operand
// at the given address. Unlike THTST the dispatch is on the full aux
// field; CmpCnt tests the iteration counter against the ALU value as
// reals, and undocumented aux values latch false.
func (n *Ntx) maskPredicate(opBAddr uint32) bool {
	switch n.desc.AuxFunc {
	case CmpEq:
		opB := fp32.ToFloat(n.mem.Load(opBAddr))
		return (opB == fp32.ToFloat(n.alu)) != n.desc.Polarity
	case CmpLt:
		opB := fp32.ToFloat(n.mem.Load(opBAddr))
		return (opB > fp32.ToFloat(n.alu)) != n.desc.Polarity
	case CmpLe:
		opB := fp32.ToFloat(n.mem.Load(opBAddr))
		return (opB >= fp32.ToFloat(n.alu)) != n.desc.Polarity
	case CmpCnt:
		return (float32(n.cnt) == fp32.ToFloat(n.alu)) != n.desc.Polarity
	default:
		return false
	}
}

// MASKMAC: conditional accumulating read-modify-write -----------------

type maskMacOp struct {
	n       *Ntx
	tst     bool
	opAAddr uint32
}

func (k *maskMacOp) init() {
	// threshold scalar from AGU 1, running sum preloaded through AGU 0
	if k.n.desc.initZero() {
		k.n.alu = fp32.ZeroVal
	} else {
		k.n.alu = k.n.mem.Load(k.n.agu[1])
	}
	x := k.n.mem.Load(k.n.agu[0])
	fp32.Mac(x, fp32.OneVal, true, false, false, &k.n.accu)
	k.n.cnt = 0
}

func (k *maskMacOp) execute() {
	// the destination element is the contribution; with the positional
	// aux bit the operand address points at it as well, but the CmpCnt
	// compare reads only the counter
	k.opAAddr = k.n.agu[2]
	opBAddr := k.opAAddr
	if k.n.desc.AuxFunc&CmpCnt == 0 {
		opBAddr = k.n.agu[1]
	}
	k.tst = k.n.maskPredicate(opBAddr)
	k.n.cnt++
}

func (k *maskMacOp) store() {
	if !k.tst {
		// destination stays bit-identical
		return
	}
	opA := k.n.mem.Load(k.opAAddr)
	res := fp32.Mac(opA, fp32.OneVal, false, false, true, &k.n.accu)
	k.n.mem.Store(k.n.agu[2], res)
}

// COPY: broadcast, elementwise copy and reduce-broadcast --------------

type copyOp struct {
	n *Ntx
}

func (k *copyOp) init() {
	if k.n.desc.AuxFunc&CopyAuxVect == 0 {
		k.n.alu = k.n.loadInit()
	}
}

func (k *copyOp) execute() {
	if k.n.desc.AuxFunc&CopyAuxVect != 0 {
		k.n.alu = k.n.mem.Load(k.n.agu[0])
	}
}

func (k *copyOp) store() {
	k.n.mem.Store(k.n.agu[2], k.n.alu)
}

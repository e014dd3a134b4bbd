package nst

import (
	"testing"

	"ntx/src/fp32"
)

const fillPattern = 0x55555555

func newFilledTcdm(words int) *Tcdm {
	mem := NewTcdm(words)
	mem.Fill(fillPattern)
	return mem
}

func TestExecuteCountMatchesLoopProduct(t *testing.T) {
	// MAXMIN increments the iteration counter on every execute, so the
	// counter after a single init window equals the loop product.
	mem := newFilledTcdm(64)
	mem.SetFloat(0, 1.0)

	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:     OpMaxMin,
		InitSel:    InitWithZero,
		InitLevel:  2,
		InnerLevel: 2,
		OuterLevel: 2,
		LoopBound:  [NumHwLoops]uint32{3, 4},
	}, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.CntState() != 20 {
		t.Fatalf("expected 20 executes, counted %d", n.CntState())
	}
}

func TestScalarDegenerateRun(t *testing.T) {
	// all bounds zero and all strides zero reduce to one evaluation
	mem := newFilledTcdm(16)
	mem.SetFloat(0, 3.0)
	mem.SetFloat(4, 7.0)

	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:  OpMac,
		InitSel: InitWithZero,
		AguOff:  [NumAgus]uint32{0, 4, 8},
	}, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mem.Float(8); got != 21.0 {
		t.Fatalf("expected 21.0, got %v", got)
	}
}

func TestStoreFiresPerInnerWindow(t *testing.T) {
	// elementwise COPY with innerLevel 1: the store sees only the last
	// element of each row, and the destination advances once per row
	mem := newFilledTcdm(32)
	src := []float32{1, 2, 3, 10, 20, 30}
	for i, v := range src {
		mem.SetFloat(uint32(i)<<2, v)
	}

	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:     OpCopy,
		InitSel:    InitWithZero,
		AuxFunc:    CopyAuxVect,
		InitLevel:  2,
		InnerLevel: 1,
		OuterLevel: 2,
		LoopBound:  [NumHwLoops]uint32{2, 1},
		AguOff:     [NumAgus]uint32{0, 0, 96},
		AguStride: [NumAgus][NumHwLoops]int32{
			{4, 4},
			{},
			{0, 4},
		},
	}, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.Float(96) != 3.0 || mem.Float(100) != 30.0 {
		t.Fatalf("expected row tails 3 and 30, got %v and %v", mem.Float(96), mem.Float(100))
	}
	if mem.Load(104) != fillPattern {
		t.Fatalf("store wrote past its two windows")
	}
}

func TestInitFiresPerWindow(t *testing.T) {
	// two row-wise dot products: init at level 1 restarts the
	// accumulator per row
	mem := newFilledTcdm(64)
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{1, 1, 1, 2, 2, 2}
	for i := range a {
		mem.SetFloat(uint32(i)<<2, a[i])
		mem.SetFloat(uint32(32+i*4), b[i])
	}

	n := NewNtx()
	n.StageLoopNest(1, 1, 2,
		[NumHwLoops]uint32{3, 2},
		[NumAgus][NumHwLoops]int32{
			{1, 3},
			{1, 3},
			{0, 1},
		})
	n.StageAguOffs(0, 32, 128)
	n.StageCmd(OpMac, InitWithZero, MacAuxStd, IrqCfgNone, PosPolarity)
	if err := n.IssueCmd(mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mem.Float(128); got != 6.0 {
		t.Fatalf("row 0 dot product: expected 6.0, got %v", got)
	}
	if got := mem.Float(132); got != 30.0 {
		t.Fatalf("row 1 dot product: expected 30.0, got %v", got)
	}
}

func TestStrideSuppressedOnLastIteration(t *testing.T) {
	// with a zero outer stride the cursors must return to the second
	// row only via the level-1 stride, never past it: a 2x2 copy whose
	// level-1 stride jumps exactly from the end of one row to the
	// start of the next only works if the last inner stride is
	// suppressed
	mem := newFilledTcdm(32)
	tile := []float32{1, 2, 3, 4}
	for i, v := range tile {
		mem.SetFloat(uint32(i)<<2, v)
	}

	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:     OpCopy,
		InitSel:    InitWithZero,
		AuxFunc:    CopyAuxVect,
		InitLevel:  2,
		InnerLevel: 0,
		OuterLevel: 2,
		LoopBound:  [NumHwLoops]uint32{1, 1},
		AguOff:     [NumAgus]uint32{0, 0, 64},
		AguStride: [NumAgus][NumHwLoops]int32{
			{4, 4},
			{},
			{4, 4},
		},
	}, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range tile {
		if got := mem.Float(uint32(64 + i*4)); got != want {
			t.Fatalf("element %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestMalformedDescriptorLeavesMemoryUntouched(t *testing.T) {
	mem := newFilledTcdm(16)
	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:     OpCopy,
		InitLevel:  0,
		InnerLevel: 1,
		OuterLevel: 1,
	}, mem)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, w := range mem.Words() {
		if w != fillPattern {
			t.Fatalf("memory mutated by rejected descriptor")
		}
	}
}

func TestRangeCheckAbortsWithPartialEffect(t *testing.T) {
	mem := newFilledTcdm(16)
	for i := 0; i < 4; i++ {
		mem.SetFloat(uint32(i)<<2, float32(i+1))
	}

	n := NewNtx()
	err := n.Execute(Descriptor{
		OpCode:     OpCopy,
		InitSel:    InitWithZero,
		AuxFunc:    CopyAuxVect,
		InitLevel:  1,
		InnerLevel: 0,
		OuterLevel: 1,
		LoopBound:  [NumHwLoops]uint32{3},
		AguOff:     [NumAgus]uint32{0, 0, 32},
		AguStride: [NumAgus][NumHwLoops]int32{
			{4},
			{},
			{4},
		},
		CheckTcdmAddrs: true,
		TcdmLow:        0,
		TcdmHigh:       36,
	}, mem)
	if err == nil {
		t.Fatalf("expected range check failure")
	}

	// iterations before the violation remain committed, nothing after
	if mem.Float(32) != 1.0 || mem.Float(36) != 2.0 {
		t.Fatalf("committed iterations lost: %v %v", mem.Float(32), mem.Float(36))
	}
	if mem.Load(40) != fillPattern {
		t.Fatalf("iteration past the violation was executed")
	}
}

func TestStageLoopNestDifferentialStrides(t *testing.T) {
	// a contiguous 10x10 walk collapses to a four-byte stride at both
	// levels once the inner sweep displacement is subtracted
	n := NewNtx()
	n.StageLoopNest(2, 2, 2,
		[NumHwLoops]uint32{10, 10},
		[NumAgus][NumHwLoops]int32{
			{1, 10},
			{1, 10},
			{0, 0},
		})
	d := n.Descriptor()

	if d.LoopBound[0] != 9 || d.LoopBound[1] != 9 {
		t.Fatalf("expected staged bounds 9/9, got %d/%d", d.LoopBound[0], d.LoopBound[1])
	}
	for o := 0; o < 2; o++ {
		if d.AguStride[o][0] != 4 || d.AguStride[o][1] != 4 {
			t.Fatalf("agu %d: expected strides 4/4, got %d/%d",
				o, d.AguStride[o][0], d.AguStride[o][1])
		}
	}
	if d.AguStride[2][0] != 0 || d.AguStride[2][1] != 0 {
		t.Fatalf("agu 2 should not move")
	}
}

func TestStageLoopNestRejectsZeroCount(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero loop count")
		}
	}()
	n := NewNtx()
	n.StageLoopNest(1, 1, 1, [NumHwLoops]uint32{0}, [NumAgus][NumHwLoops]int32{})
}

func TestIrqLatch(t *testing.T) {
	mem := newFilledTcdm(16)
	mem.SetFloat(0, 1.0)
	mem.SetFloat(4, 1.0)

	n := NewNtx()
	n.StageLoopNest(1, 1, 1,
		[NumHwLoops]uint32{2},
		[NumAgus][NumHwLoops]int32{{1}, {1}, {0}})
	n.StageAguOffs(0, 0, 32)
	n.StageCmd(OpMac, InitWithZero, MacAuxStd, IrqCfgCmd, PosPolarity)
	if n.HasIrq() {
		t.Fatalf("irq pending before issue")
	}
	if err := n.IssueCmd(mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.HasIrq() {
		t.Fatalf("expected irq after issue")
	}
	n.ClrIrq()
	if n.HasIrq() {
		t.Fatalf("irq survived clear")
	}
}

func TestTcdmAccessors(t *testing.T) {
	mem := NewTcdm(8)
	mem.Store(12, 0xDEADBEEF)
	if mem.Load(12) != 0xDEADBEEF {
		t.Fatalf("load/store round trip broken")
	}
	mem.SetFloat(16, 2.5)
	if mem.Float(16) != 2.5 || mem.Load(16) != fp32.FromFloat(2.5) {
		t.Fatalf("float accessors broken")
	}
	if mem.Size() != 32 {
		t.Fatalf("expected 32 bytes, got %d", mem.Size())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unaligned access")
		}
	}()
	mem.Load(2)
}

package nst

import "testing"

func TestBroadcastFansOutStagingAndIssue(t *testing.T) {
	mem := newFilledTcdm(64)
	setVector(mem, 0, 1.0, 2.0, 3.0)
	setVector(mem, 16, 2.0, 2.0, 2.0)

	a := NewNtx()
	b := NewNtx()
	group := NewBroadcast(a, b)

	group.StageLoopNest(1, 1, 1,
		[NumHwLoops]uint32{3},
		[NumAgus][NumHwLoops]int32{
			{1},
			{1},
			{0},
		})
	group.StageAguOffs(0, 16, 48)
	group.StageCmd(OpMac, InitWithZero, MacAuxStd, IrqCfgCmd, PosPolarity)

	if a.CmdWord() != b.CmdWord() {
		t.Fatalf("staged command words diverge: 0x%08x vs 0x%08x", a.CmdWord(), b.CmdWord())
	}

	if err := group.IssueCmd(mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mem.Float(48); got != 12.0 {
		t.Fatalf("expected 12.0, got %v", got)
	}
	if !a.HasIrq() || !b.HasIrq() {
		t.Fatalf("expected pending irq on every group member")
	}

	group.ClrIrq()
	if a.HasIrq() || b.HasIrq() {
		t.Fatalf("irq survived broadcast clear")
	}
}

func TestBroadcastStopsOnFirstError(t *testing.T) {
	mem := newFilledTcdm(16)

	a := NewNtx()
	b := NewNtx()
	a.SetTcdmBaseCheck(0, 4) // too narrow for the staged walk
	group := NewBroadcast(a, b)

	group.StageLoopNest(1, 1, 1,
		[NumHwLoops]uint32{4},
		[NumAgus][NumHwLoops]int32{
			{1},
			{0},
			{0},
		})
	group.StageAguOffs(0, 0, 8)
	group.StageCmd(OpMaxMin, InitWithZero, MaxMinAuxStd, IrqCfgCmd, PosPolarity)

	if err := group.IssueCmd(mem); err == nil {
		t.Fatalf("expected range check failure from the first member")
	}
	if b.HasIrq() {
		t.Fatalf("second member must not have run after the failure")
	}
}

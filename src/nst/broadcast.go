package nst

// Broadcast is a staging alias that fans every staging call and command
// issue out to a group of accelerator instances, the way the broadcast
// address range addresses all NSTs of a cluster at once.
type Broadcast struct {
	group []*Ntx
}

// NewBroadcast constructs a broadcast alias over the given instances.
func NewBroadcast(group ...*Ntx) *Broadcast {
	return &Broadcast{group: group}
}

// StageLoopNest stages the loop nest on every instance of the group.
func (b *Broadcast) StageLoopNest(
	initLevel, innerLevel, outerLevel uint8,
	counts [NumHwLoops]uint32,
	elemStride [NumAgus][NumHwLoops]int32,
) {
	for _, n := range b.group {
		n.StageLoopNest(initLevel, innerLevel, outerLevel, counts, elemStride)
	}
}

// StageAguOffs stages the AGU offsets on every instance of the group.
func (b *Broadcast) StageAguOffs(off0, off1, off2 uint32) {
	for _, n := range b.group {
		n.StageAguOffs(off0, off1, off2)
	}
}

// StageCmd stages the command word on every instance of the group.
func (b *Broadcast) StageCmd(op OpCode, initSel, auxFunc, irqCfg uint8, polarity bool) {
	for _, n := range b.group {
		n.StageCmd(op, initSel, auxFunc, irqCfg, polarity)
	}
}

// IssueCmd issues the staged command on every instance in group order.
// The first failure stops the fan-out.
func (b *Broadcast) IssueCmd(mem *Tcdm) error {
	for _, n := range b.group {
		if err := n.IssueCmd(mem); err != nil {
			return err
		}
	}
	return nil
}

// ClrIrq clears pending interrupts on every instance of the group.
func (b *Broadcast) ClrIrq() {
	for _, n := range b.group {
		n.ClrIrq()
	}
}

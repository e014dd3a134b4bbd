package nst

import (
	"fmt"

	"ntx/src/fp32"
)

// Tcdm models the tightly-coupled data memory: a flat, byte-addressed
// buffer of FP32 words. The accelerator performs naturally aligned
// 32-bit accesses only; unaligned or out-of-buffer addresses are host
// programming errors and panic.
type Tcdm struct {
	words []uint32
}

// NewTcdm allocates a TCDM holding the given number of 32-bit words.
func NewTcdm(words int) *Tcdm {
	if words <= 0 {
		panic(fmt.Errorf("nst: tcdm size %d words", words))
	}
	return &Tcdm{words: make([]uint32, words)}
}

// Words exposes the raw word array, indexed by word address.
func (t *Tcdm) Words() []uint32 {
	return t.words
}

// Size returns the buffer size in bytes.
func (t *Tcdm) Size() uint32 {
	return uint32(len(t.words)) << 2
}

func (t *Tcdm) index(addr uint32) uint32 {
	if addr&0x3 != 0 {
		panic(fmt.Errorf("nst: unaligned tcdm access at 0x%08x", addr))
	}
	idx := addr >> 2
	if idx >= uint32(len(t.words)) {
		panic(fmt.Errorf("nst: tcdm access at 0x%08x outside %d-byte buffer", addr, t.Size()))
	}
	return idx
}

// Load reads the 32-bit word at the given byte address.
func (t *Tcdm) Load(addr uint32) uint32 {
	return t.words[t.index(addr)]
}

// Store writes the 32-bit word at the given byte address.
func (t *Tcdm) Store(addr, value uint32) {
	t.words[t.index(addr)] = value
}

// Float reads the word at the given byte address as a float32.
func (t *Tcdm) Float(addr uint32) float32 {
	return fp32.ToFloat(t.Load(addr))
}

// SetFloat writes a float32 bit pattern at the given byte address.
func (t *Tcdm) SetFloat(addr uint32, f float32) {
	t.Store(addr, fp32.FromFloat(f))
}

// Fill sets every word to the given pattern.
func (t *Tcdm) Fill(pattern uint32) {
	for i := range t.words {
		t.words[i] = pattern
	}
}

package nst

import (
	"bufio"
	"fmt"
	"os"
)

// WriteJobDump writes the staged job as a plain-text file for external
// diffing: the test name, the packed command word, the five staged loop
// bounds, the AGU offsets relative to tcdmBase, and the per-AGU stride
// matrix, one AGU per line.
func (n *Ntx) WriteJobDump(fileName, testName string, tcdmBase uint32) error {
	fid, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("nst: job dump: %w", err)
	}
	defer fid.Close()

	w := bufio.NewWriter(fid)

	fmt.Fprintf(w, "%s\n", testName)
	fmt.Fprintf(w, "%08X\n", n.prepCmd)

	for k := 0; k < NumHwLoops; k++ {
		fmt.Fprintf(w, "%d ", n.desc.LoopBound[k])
	}
	fmt.Fprintln(w)

	for k := 0; k < NumAgus; k++ {
		fmt.Fprintf(w, "%d ", n.desc.AguOff[k]-tcdmBase)
	}
	fmt.Fprintln(w)

	for k := 0; k < NumAgus; k++ {
		for s := 0; s < NumHwLoops; s++ {
			fmt.Fprintf(w, "%d ", n.desc.AguStride[k][s])
		}
		fmt.Fprintln(w)
	}

	return w.Flush()
}

// WriteMemDump writes the full TCDM contents as address/word pairs, one
// word per line, in the format the reference harness diffs against.
func WriteMemDump(fileName string, mem *Tcdm) error {
	fid, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("nst: mem dump: %w", err)
	}
	defer fid.Close()

	w := bufio.NewWriter(fid)
	for k, word := range mem.Words() {
		fmt.Fprintf(w, "0x%08x 0x%08x\n", uint32(k)<<2, word)
	}
	return w.Flush()
}

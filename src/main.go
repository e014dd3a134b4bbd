// Command ntx-gen drives the NST functional model over the reference
// job families and dumps, per job, the initial TCDM image, the staged
// job description and the expected TCDM image after execution. The
// dumps are the golden data diffed against the RTL testbench.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"ntx/src/fp32"
	"ntx/src/nst"
)

const tcdmWords = 1024 * 128

const defaultSeed = 1

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "usage: %s OUTDIR [SEED]\n", os.Args[0])
		os.Exit(1)
	}
	outDir := os.Args[1]

	seed := int64(defaultSeed)
	if len(os.Args) == 3 {
		parsed, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad seed %q: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		seed = parsed
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	g := newGenerator(outDir, seed)

	g.macJobs1D()
	g.macJobs2D()
	g.macJobs3D()
	g.vAddSubJobs()
	g.vMultJobs()
	g.outerPJobs()
	g.maxMinJobs()
	g.thTstJobs()
	g.maskJobs()
	g.maskCounterJobs()
	g.maskMacJobs()
	g.maskMacCounterJobs()
	g.copyReplicateJobs()
	g.copyVectorJobs()
}

type generator struct {
	outDir string
	cnt    int
	rng    *rand.Rand
	ntx    *nst.Ntx
	mem    *nst.Tcdm
}

func newGenerator(outDir string, seed int64) *generator {
	ntx := nst.NewNtx()
	ntx.SetTcdmBaseCheck(0, (tcdmWords-1)<<2)
	return &generator{
		outDir: outDir,
		rng:    rand.New(rand.NewSource(seed)),
		ntx:    ntx,
		mem:    nst.NewTcdm(tcdmWords),
	}
}

// randPattern draws a uniform value in [-1, 1) as an FP32 bit pattern.
func (g *generator) randPattern() uint32 {
	return fp32.FromFloat(float32(g.rng.Float64()*2 - 1))
}

// seedRand fills nWords words starting at the given word offset with
// random data.
func (g *generator) seedRand(wordOff, nWords uint32) {
	for n := uint32(0); n < nWords; n++ {
		g.mem.Store((wordOff+n)<<2, g.randPattern())
	}
}

func (g *generator) path(prefix string) string {
	return filepath.Join(g.outDir, fmt.Sprintf("%s%04d.txt", prefix, g.cnt))
}

// dumpIni snapshots the seeded memory image before the job runs.
func (g *generator) dumpIni() {
	if err := nst.WriteMemDump(g.path("ini"), g.mem); err != nil {
		fail(err)
	}
}

// finish dumps the staged job, runs the golden model and dumps the
// resulting memory image.
func (g *generator) finish(testName string) {
	if err := g.ntx.WriteJobDump(g.path("job"), testName, 0); err != nil {
		fail(err)
	}
	if err := g.ntx.IssueCmd(g.mem); err != nil {
		fail(err)
	}
	if err := nst.WriteMemDump(g.path("exp"), g.mem); err != nil {
		fail(err)
	}
	fmt.Printf("generating job %d: %s\n", g.cnt, testName)
	g.cnt++
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// 1D MAC reduction: with/without init preload, with/without ReLU,
// additive/subtractive accumulation.
func (g *generator) macJobs1D() {
	for k := 0; k < 8; k++ {
		const vecLen = 100

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(3 * vecLen)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(1, 1, 1,
			[nst.NumHwLoops]uint32{vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 0, 0, 0, 0},
				{1, 0, 0, 0, 0},
				{0, 0, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMac,
			nst.InitWithAgu2+uint8(k&0x1),
			uint8((k>>1)&0x1),
			nst.IrqCfgCmd,
			(k>>2)&0x1 != 0)

		g.finish(fmt.Sprintf("1D_reduction_NTX_MAC_OP_%d", k))
	}
}

// 2D MAC reduction over square tiles.
func (g *generator) macJobs2D() {
	for k := 0; k < 8; k++ {
		const vecLen = 10

		g.mem.Fill(0x55555555)
		opA := uint32(10)
		opB := uint32(2*vecLen*vecLen + 10)
		res := uint32(0)

		g.seedRand(opA, vecLen*vecLen)
		g.seedRand(opB, vecLen*vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(2, 2, 2,
			[nst.NumHwLoops]uint32{vecLen, vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, vecLen, 0, 0, 0},
				{1, vecLen, 0, 0, 0},
				{0, 0, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMac,
			nst.InitWithAgu2+uint8(k&0x1),
			uint8((k>>1)&0x1),
			nst.IrqCfgCmd,
			(k>>2)&0x1 != 0)

		g.finish(fmt.Sprintf("2D_reduction_NTX_MAC_OP_%d", k))
	}
}

// 3D MAC reduction with 2D output stride: a 10-channel 20x20
// convolution input producing a 10x10 output, using all five loops.
func (g *generator) macJobs3D() {
	for k := 0; k < 8; k++ {
		const vecLen = 10 * 20 * 20

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(2 * vecLen)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(3, 3, 5,
			[nst.NumHwLoops]uint32{10, 10, 10, 10, 10},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 20, 20 * 20, 1, 20},
				{1, 20, 20 * 20, 1, 20},
				{0, 0, 0, 1, 10},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMac,
			nst.InitWithZero-uint8(k&0x1),
			uint8((k>>1)&0x1),
			nst.IrqCfgCmd,
			(k>>2)&0x1 != 0)

		g.finish(fmt.Sprintf("3D_reduction_2D_stride_NTX_MAC_OP_%d", k))
	}
}

// 1D vector add/sub with and without ReLU.
func (g *generator) vAddSubJobs() {
	for k := 0; k < 4; k++ {
		const vecLen = 100

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(3 * vecLen)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(0, 0, 1,
			[nst.NumHwLoops]uint32{vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 0, 0, 0, 0},
				{1, 0, 0, 0, 0},
				{1, 0, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpVAddSub,
			nst.InitWithAgu1,
			uint8(k&0x1),
			nst.IrqCfgCmd,
			(k>>1)&0x1 != 0)

		g.finish(fmt.Sprintf("1D_vector_C_NTX_VADDSUB_OP_%d", k))
	}
}

// 1D vector multiply with and without ReLU and product negation.
func (g *generator) vMultJobs() {
	for k := 0; k < 4; k++ {
		const vecLen = 100

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(3 * vecLen)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(0, 0, 1,
			[nst.NumHwLoops]uint32{vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 0, 0, 0, 0},
				{1, 0, 0, 0, 0},
				{1, 0, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpVMult,
			nst.InitWithAgu1,
			uint8(k&0x1),
			nst.IrqCfgCmd,
			(k>>1)&0x1 != 0)

		g.finish(fmt.Sprintf("1D_vector_C_NTX_VMULT_OP_%d", k))
	}
}

// 20x20 outer product scaled by the init value.
func (g *generator) outerPJobs() {
	for k := 0; k < 4; k++ {
		const vecLen = 20

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen*vecLen + 10)
		opB := uint32(2*vecLen*vecLen + 10)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{vecLen, vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 0, 0, 0, 0},
				{0, 1, 0, 0, 0},
				{1, vecLen, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpOuterP,
			nst.InitWithAgu1,
			uint8((k>>1)&0x1),
			nst.IrqCfgCmd,
			k&0x1 != 0)

		g.finish(fmt.Sprintf("outer_product_C_NTX_OUTERP_OP_%d", k))
	}
}

// 1D max/min reduction with and without arg-index output.
func (g *generator) maxMinJobs() {
	for k := 0; k < 4; k++ {
		const vecLen = 100

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(3 * vecLen)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(1, 1, 1,
			[nst.NumHwLoops]uint32{vecLen},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{0, 0, 0, 0, 0},
				{1, 0, 0, 0, 0}, // maxmin streams through agu 1
				{0, 0, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMaxMin,
			nst.InitWithAgu1,
			uint8(k&0x1),
			nst.IrqCfgCmd,
			(k>>1)&0x1 != 0)

		g.finish(fmt.Sprintf("1D_reduction_NTX_MAXMIN_OP_%d", k))
	}
}

// Thresholding over 10 vectors of 100 elements, sweeping the compare
// modes, binary output and polarity. A few elements are pinned so the
// equality mode has hits.
func (g *generator) thTstJobs() {
	for k := 0; k < 32; k++ {
		const vecLen = 100 * 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(2 * vecLen)
		res := uint32(0)

		g.seedRand(opB, vecLen)
		g.seedRand(opA, 10)
		g.mem.SetFloat((opB+2)<<2, 0.0)
		g.mem.Store((opA+1)<<2, g.mem.Load((opB+15)<<2))
		g.seedRand(res, 1)
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{100, 10},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{0, 1, 0, 0, 0},
				{1, 100, 0, 0, 0},
				{1, 100, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpThTst,
			nst.InitWithZero-3*uint8(k&0x1),
			uint8((k>>1)&0x7),
			nst.IrqCfgCmd,
			(k>>4)&0x1 != 0)

		g.finish(fmt.Sprintf("vector_mask_NTX_THTST_OP_%d", k))
	}
}

// Masking against a scalar threshold.
func (g *generator) maskJobs() {
	for k := 0; k < 8; k++ {
		const vecLen = 100 * 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(2*vecLen + 50)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		g.seedRand(opB, vecLen)
		g.dumpIni()

		g.ntx.StageLoopNest(2, 0, 2,
			[nst.NumHwLoops]uint32{100, 10},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 100, 0, 0, 0},
				{1, 100, 0, 0, 0},
				{1, 100, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMask,
			nst.InitWithZero,
			uint8(k&0x3),
			nst.IrqCfgCmd,
			(k>>2)&0x1 != 0)

		g.finish(fmt.Sprintf("vector_mask_NTX_MASK_OP_%d", k))
	}
}

// Masking against the internal iteration counter: one position per
// vector survives (all but one with inverted polarity).
func (g *generator) maskCounterJobs() {
	for k := 0; k < 2; k++ {
		const vecLen = 100 * 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen)
		opB := uint32(2*vecLen + 50)
		res := uint32(0)

		g.seedRand(opA, vecLen)
		for n := uint32(0); n < 10; n++ {
			pos := math.Max(math.Round(50.0*(g.rng.Float64()*2-1)+49.0), 0.0)
			g.mem.SetFloat((opB+n)<<2, float32(pos))
		}
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{100, 10},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{1, 100, 0, 0, 0},
				{0, 1, 0, 0, 0},
				{1, 100, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMask,
			nst.InitWithAgu1,
			nst.CmpCnt,
			nst.IrqCfgCmd,
			k&0x1 != 0)

		g.finish(fmt.Sprintf("internal_counter_NTX_MASK_OP_%d", k))
	}
}

// Conditional accumulation into the destination vectors, thresholded
// against a mask vector.
func (g *generator) maskMacJobs() {
	for k := 0; k < 8; k++ {
		const vecLen1 = 100
		const vecLen2 = 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen1*vecLen2 + 10)
		opB := uint32(vecLen1*vecLen2 + vecLen2 + 20)
		res := uint32(0)

		g.seedRand(res, vecLen1*vecLen2)
		g.seedRand(opA, vecLen2)
		for n := uint32(0); n < vecLen1*vecLen2; n++ {
			var bit float32
			if g.rng.Float64()*2-1 >= 0 {
				bit = 1.0
			}
			g.mem.SetFloat((opB+n)<<2, bit)
		}
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{vecLen1, vecLen2},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{0, 1, 0, 0, 0},
				{1, vecLen1, 0, 0, 0},
				{1, vecLen1, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMaskMac,
			nst.InitWithZero,
			uint8(k&0x3),
			nst.IrqCfgCmd,
			(k>>2)&0x1 != 0)

		g.finish(fmt.Sprintf("vector_mask_NTX_MASKMAC_OP_%d", k))
	}
}

// Conditional accumulation at counter-selected positions: each vector
// carries a target position in opB and an offset in opA added there.
func (g *generator) maskMacCounterJobs() {
	for k := 0; k < 2; k++ {
		const vecLen1 = 100
		const vecLen2 = 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen1*vecLen2 + 10)
		opB := uint32(vecLen1*vecLen2 + vecLen2 + 20)
		res := uint32(0)

		g.seedRand(res, vecLen1*vecLen2)
		g.seedRand(opA, vecLen2)
		for n := uint32(0); n < vecLen2; n++ {
			pos := math.Max(math.Round(vecLen1/2*(g.rng.Float64()*2-1)+vecLen1/2-1), 0.0)
			g.mem.SetFloat((opB+n)<<2, float32(pos))
		}
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{vecLen1, vecLen2},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{0, 1, 0, 0, 0},
				{0, 1, 0, 0, 0},
				{1, vecLen1, 0, 0, 0},
			})
		g.ntx.StageAguOffs(opA<<2, opB<<2, res<<2)
		g.ntx.StageCmd(nst.OpMaskMac,
			nst.InitWithAgu1,
			nst.CmpCnt,
			nst.IrqCfgCmd,
			k&0x1 != 0)

		g.finish(fmt.Sprintf("internal_counter_NTX_MASKMAC_OP_%d", k))
	}
}

// Replicate a per-row init value (or zero) across a 10x100 matrix.
func (g *generator) copyReplicateJobs() {
	for k := 0; k < 2; k++ {
		const vecLen1 = 100
		const vecLen2 = 10

		g.mem.Fill(0x55555555)
		opA := uint32(vecLen1*vecLen2 + 10)
		res := uint32(0)

		g.seedRand(opA, vecLen1)
		g.dumpIni()

		g.ntx.StageLoopNest(1, 0, 2,
			[nst.NumHwLoops]uint32{vecLen1, vecLen2},
			[nst.NumAgus][nst.NumHwLoops]int32{
				{0, 1, 0, 0, 0},
				{0, 0, 0, 0, 0},
				{1, vecLen1, 0, 0, 0},
			})
		initSel := nst.InitWithZero
		if k != 0 {
			initSel = nst.InitWithAgu0
		}
		g.ntx.StageAguOffs(opA<<2, 0, res<<2)
		g.ntx.StageCmd(nst.OpCopy,
			initSel,
			nst.CopyAuxRepl,
			nst.IrqCfgCmd,
			nst.PosPolarity)

		g.finish(fmt.Sprintf("replicate_NTX_COPY_OP_%d", k))
	}
}

// Elementwise 10x100 matrix copy.
func (g *generator) copyVectorJobs() {
	const vecLen1 = 100
	const vecLen2 = 10

	g.mem.Fill(0x55555555)
	opA := uint32(vecLen1*vecLen2 + 10)
	res := uint32(0)

	g.seedRand(opA, vecLen1*vecLen2)
	g.dumpIni()

	g.ntx.StageLoopNest(0, 0, 2,
		[nst.NumHwLoops]uint32{vecLen1, vecLen2},
		[nst.NumAgus][nst.NumHwLoops]int32{
			{1, vecLen1, 0, 0, 0},
			{0, 0, 0, 0, 0},
			{1, vecLen1, 0, 0, 0},
		})
	g.ntx.StageAguOffs(opA<<2, 0, res<<2)
	g.ntx.StageCmd(nst.OpCopy,
		nst.InitWithZero,
		nst.CopyAuxVect,
		nst.IrqCfgCmd,
		nst.PosPolarity)

	g.finish("vector_NTX_COPY_OP_0")
}

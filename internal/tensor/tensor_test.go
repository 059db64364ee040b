package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"
)

func randSlice(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = (rng.Float32() - 0.5) * 2
	}
	return out
}

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func TestF16RoundTrip(t *testing.T) {
	t.Parallel()
	exact := []float32{0, 1, -1, 0.5, 2, 1024, -0.25, 65504}
	for _, v := range exact {
		assert.Equal(t, v, DecodeF16(EncodeF16(v)), "value %g", v)
	}
	assert.True(t, math.IsInf(float64(DecodeF16(EncodeF16(1e6))), 1))
	assert.Equal(t, float32(0), DecodeF16(EncodeF16(1e-9)))

	// subnormal: 2^-24 is the smallest positive half
	tiny := float32(math.Ldexp(1, -24))
	assert.Equal(t, tiny, DecodeF16(EncodeF16(tiny)))

	// subnormals round to nearest even in units of 2^-24
	for _, tc := range []struct{ in, want float64 }{
		{0.75, 1},
		{1.5, 2},
		{1.75, 2},
		{2.5, 2},
		{3.75, 4},
		{0.5, 0},
		{0.25, 0},
		{0.5000001, 1},
		{1023.5, 1024},
		{1022.5, 1022},
	} {
		in := float32(math.Ldexp(tc.in, -24))
		want := float32(math.Ldexp(tc.want, -24))
		assert.Equal(t, want, DecodeF16(EncodeF16(in)), "%g * 2^-24", tc.in)
		assert.Equal(t, -want, DecodeF16(EncodeF16(-in)), "-%g * 2^-24", tc.in)
	}
	assert.Equal(t, uint16(0x0400), EncodeF16(float32(math.Ldexp(1023.5, -24))))
	assert.Equal(t, uint16(0x8000), EncodeF16(float32(math.Ldexp(1, -26))))

	// relative error of a normal value stays within half an ulp (2^-11)
	rng := rand.New(rand.NewSource(1))
	for range 1000 {
		v := (rng.Float32() - 0.5) * 200
		got := DecodeF16(EncodeF16(v))
		if v != 0 {
			assert.LessOrEqual(t, math.Abs(float64(got-v)/float64(v)), 1.0/2048+1e-7)
		}
	}
}

func TestPackF16Validation(t *testing.T) {
	t.Parallel()
	_, err := PackF16(NoTranspose, 0, 3, 1, nil)
	require.ErrorIs(t, err, errBadShape)
	_, err = PackF16(NoTranspose, 2, 3, 1, make([]float32, 5))
	require.ErrorIs(t, err, errDataMismatch)
	_, err = PackF16Block(NoTranspose, 2, 3, 1, make([]float32, 6), 17)
	require.ErrorIs(t, err, errBlockColumns)
}

func TestAddrIsInjective(t *testing.T) {
	t.Parallel()
	for _, block := range []int{1, 3, 4, 8, 16} {
		p, err := PackF16Block(NoTranspose, 5, 11, 1, make([]float32, 55), block)
		require.NoError(t, err)
		seen := make(map[int]bool)
		for i := 0; i < 5; i++ {
			for j := 0; j < 11; j++ {
				addr := p.Addr(i, j)
				require.False(t, seen[addr], "block=%d duplicate addr for (%d,%d)", block, i, j)
				require.Less(t, addr, len(p.Raw()))
				seen[addr] = true
			}
		}
	}
}

func TestPackTransposeMatchesNoTranspose(t *testing.T) {
	t.Parallel()
	k, n := 6, 5
	rng := rand.New(rand.NewSource(2))
	b := randSlice(rng, k*n)
	bt := make([]float32, k*n)
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			bt[j*k+i] = b[i*n+j]
		}
	}
	p1, err := PackF16(NoTranspose, k, n, 1, b)
	require.NoError(t, err)
	p2, err := PackF16(Transpose, k, n, 1, bt)
	require.NoError(t, err)
	assert.Equal(t, p1.Unpack(), p2.Unpack())
}

func TestPackAlphaScales(t *testing.T) {
	t.Parallel()
	p, err := PackF16(NoTranspose, 1, 2, 2, []float32{1, -3})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, -6}, p.Unpack())
	assert.Contains(t, p.Describe(true), "data=[2 -6]")
	assert.NotContains(t, p.String(), "data=")
}

func TestGemmF16MatchesBlas(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(3))
	for _, tc := range []struct{ m, k, n, block int }{
		{1, 4, 4, 4},
		{7, 13, 9, 8},
		{16, 33, 17, 16},
		{5, 3, 1, 3},
	} {
		a := randSlice(rng, tc.m*tc.k)
		b := randSlice(rng, tc.k*tc.n)
		c := randSlice(rng, tc.m*tc.n)

		p, err := PackF16Block(NoTranspose, tc.k, tc.n, 1, b, tc.block)
		require.NoError(t, err)

		want := append([]float32(nil), c...)
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: tc.m, Cols: tc.k, Stride: tc.k, Data: a},
			blas32.General{Rows: tc.k, Cols: tc.n, Stride: tc.n, Data: p.Unpack()},
			1,
			blas32.General{Rows: tc.m, Cols: tc.n, Stride: tc.n, Data: want})

		got := append([]float32(nil), c...)
		GemmF16(tc.m, a, tc.k, p, 1, got, tc.n)
		assert.Less(t, maxAbsDiff(want, got), 1e-4, "case %+v", tc)
	}
}

func TestGemmF16Strides(t *testing.T) {
	t.Parallel()
	// two 1x2 rows of A embedded in a stride-3 slice; C rows with stride 4
	a := []float32{1, 2, 99, 3, 4}
	p, err := PackF16(NoTranspose, 2, 2, 1, []float32{1, 0, 0, 1})
	require.NoError(t, err)
	c := []float32{10, 10, -1, -1, 20, 20}
	GemmF16(2, a, 3, p, 1, c, 4)
	assert.Equal(t, []float32{11, 12, -1, -1, 23, 24}, c)

	c = []float32{10, 10, -1, -1, 20, 20}
	GemmF16(2, a, 3, p, 0, c, 4)
	assert.Equal(t, []float32{1, 2, -1, -1, 3, 4}, c)

	assert.Panics(t, func() { GemmF16(3, a, 3, p, 1, c, 4) })
}

func TestGemmRowsIndependentOfBatch(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(4))
	m, k, n := 9, 12, 7
	a := randSlice(rng, m*k)
	p, err := PackF16(NoTranspose, k, n, 1, randSlice(rng, k*n))
	require.NoError(t, err)

	all := make([]float32, m*n)
	GemmF16(m, a, k, p, 0, all, n)
	for r := 0; r < m; r++ {
		one := make([]float32, n)
		GemmF16(1, a[r*k:], k, p, 0, one, n)
		require.Equal(t, all[r*n:(r+1)*n], one, "row %d", r)
	}
}

func TestMeanStdDevMatchesGonum(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(5))
	x := randSlice(rng, 37)
	x64 := make([]float64, len(x))
	for i, v := range x {
		x64[i] = float64(v)
	}
	wantMean, wantStd := stat.PopMeanStdDev(x64, nil)
	mean, std := MeanStdDev(x)
	assert.InDelta(t, wantMean, float64(mean), 1e-6)
	assert.InDelta(t, wantStd, float64(std), 1e-6)

	mean, std = MeanStdDev([]float32{3, 3, 3})
	assert.Equal(t, float32(3), mean)
	assert.Equal(t, float32(0), std)
}

func TestFrameOps(t *testing.T) {
	t.Parallel()
	dst := make([]float32, 3)
	AddTo(dst, []float32{1, 2, 3, 4}, []float32{1, 1, 1})
	assert.Equal(t, []float32{2, 3, 4}, dst)

	Relu(dst, []float32{-1, 0, 5})
	assert.Equal(t, []float32{0, 0, 5}, dst)

	MeanNormalize(dst, []float32{1, 2, 3}, 2, 0.5, 2, 1)
	assert.Equal(t, []float32{-3, 1, 5}, dst)

	rep := make([]float32, 6)
	Repeat(rep, []float32{1, 2})
	assert.Equal(t, []float32{1, 2, 1, 2, 1, 2}, rep)
}

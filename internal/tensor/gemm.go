package tensor

// GemmF16 computes C = beta*C + A*B for an m x k row-major A with row stride
// lda and a packed k x n B, writing an m x n C with row stride ldc. The
// accumulation runs in float32 and rows are computed independently, so the
// result for a row never depends on how many rows are in the call.
//
// GemmF16 runs on the calling goroutine and holds no state; it is reentrant.
func GemmF16(m int, a []float32, lda int, b *PackedF16, beta float32, c []float32, ldc int) {
	if m == 0 {
		return
	}
	k, n := b.k, b.n
	if m < 0 || lda < k || ldc < n || len(a) < (m-1)*lda+k || len(c) < (m-1)*ldc+n {
		panic("gemm: dimension mismatch")
	}

	bc := b.block
	blocks := numBlocks(n, bc)
	blockLen := k * bc
	for r := 0; r < m; r++ {
		arow := a[r*lda : r*lda+k]
		crow := c[r*ldc : r*ldc+n]
		for jb := 0; jb < blocks; jb++ {
			j0 := jb * bc
			w := min(bc, n-j0)

			var acc [maxBlockColumns]float32
			if beta != 0 {
				for jj := 0; jj < w; jj++ {
					acc[jj] = beta * crow[j0+jj]
				}
			}
			block := b.data[jb*blockLen : (jb+1)*blockLen]
			for i, av := range arow {
				row := block[i*bc : i*bc+bc]
				for jj, h := range row {
					acc[jj] += av * fp16Table[h]
				}
			}
			copy(crow[j0:j0+w], acc[:w])
		}
	}
}

package linalg

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
CPU is the default Backend. Dense complex products run through gonum's
cblas128, rank and square roots go through the real embedding of a complex
matrix (Z = X + iY maps to [[X, -Y], [Y, X]]) so that gonum's real SVD,
symmetric eigen solver and matrix exponential can be used, and sampling draws from a seeded PCG
source for reproducible measurement records.
*/
type CPU struct {
	seed uint64
	src  *rand.PCG
}

// NewCPU returns a CPU backend whose sampler is seeded with seed.
func NewCPU(seed uint64) *CPU {
	return &CPU{
		seed: seed,
		src:  rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Seed returns the seed the sampler was created with.
func (c *CPU) Seed() uint64 {
	return c.seed
}

func (c *CPU) Allocate(rows, cols int) *Matrix {
	return New(rows, cols)
}

func (c *CPU) Mul(a, b *Matrix) *Matrix {
	if a.cols != b.rows {
		panic(fmt.Sprintf("linalg: cannot multiply %dx%d by %dx%d", a.rows, a.cols, b.rows, b.cols))
	}

	out := New(a.rows, b.cols)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, a.general(), b.general(), 0, out.general())
	return out
}

func (c *CPU) Kron(a, b *Matrix) *Matrix {
	out := New(a.rows*b.rows, a.cols*b.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			av := a.data[i*a.cols+j]
			if av == 0 {
				continue
			}
			for k := 0; k < b.rows; k++ {
				row := (i*b.rows + k) * out.cols
				for l := 0; l < b.cols; l++ {
					out.data[row+j*b.cols+l] = av * b.data[k*b.cols+l]
				}
			}
		}
	}
	return out
}

func (c *CPU) Trace(a *Matrix) complex128 {
	if !a.IsSquare() {
		panic("linalg: trace of non-square matrix")
	}

	var t complex128
	for i := 0; i < a.rows; i++ {
		t += a.data[i*a.cols+i]
	}
	return t
}

func (c *CPU) PartialTrace(a *Matrix, dims []int, keep []int) *Matrix {
	if a.rows != Product(dims) {
		panic(fmt.Sprintf("linalg: state of size %d does not match dims %v", a.rows, dims))
	}

	kept := Offsets(dims, keep)
	traced := Offsets(dims, Complement(keep, len(dims)))
	out := New(len(kept), len(kept))

	if a.IsColumn() {
		for i, ki := range kept {
			for j, kj := range kept {
				var sum complex128
				for _, t := range traced {
					sum += a.data[ki+t] * cmplx.Conj(a.data[kj+t])
				}
				out.data[i*out.cols+j] = sum
			}
		}
		return out
	}

	for i, ki := range kept {
		for j, kj := range kept {
			var sum complex128
			for _, t := range traced {
				sum += a.data[(ki+t)*a.cols+kj+t]
			}
			out.data[i*out.cols+j] = sum
		}
	}
	return out
}

func (c *CPU) Rank(a *Matrix, tol float64) int {
	var svd mat.SVD
	if !svd.Factorize(realEmbedding(a), mat.SVDNone) {
		return min(a.rows, a.cols)
	}

	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0
	}

	count := 0
	for _, s := range values {
		if s > tol*values[0] {
			count++
		}
	}

	// Every singular value of a appears twice in the embedding.
	return (count + 1) / 2
}

/*
Expm computes the matrix exponential of the real embedding with gonum's
Padé scaling-and-squaring and reads the complex block back out. The
embedding is a ring homomorphism, so exp([[X, -Y], [Y, X]]) keeps the same
block structure.
*/
func (c *CPU) Expm(a *Matrix) *Matrix {
	if !a.IsSquare() {
		panic("linalg: exponential of non-square matrix")
	}

	n := a.rows
	var e mat.Dense
	e.Exp(realEmbedding(a))

	out := New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, complex(e.At(i, j), e.At(n+i, j)))
		}
	}
	return out
}

func (c *CPU) SqrtPSD(a *Matrix) *Matrix {
	if !a.IsSquare() {
		panic("linalg: square root of non-square matrix")
	}

	n := a.rows
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (a.At(i, j) + cmplx.Conj(a.At(j, i))) / 2
			sym.SetSym(i, j, real(v))
			sym.SetSym(n+i, n+j, real(v))
			sym.SetSym(i, n+j, -imag(v))
			sym.SetSym(j, n+i, imag(v))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		panic("linalg: eigendecomposition failed")
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	roots := make([]float64, len(values))
	for i, v := range values {
		roots[i] = math.Sqrt(math.Max(v, 0))
	}

	var scaled mat.Dense
	scaled.Apply(func(_, j int, v float64) float64 { return v * roots[j] }, &vectors)

	var root mat.Dense
	root.Mul(&scaled, vectors.T())

	out := New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.data[i*n+j] = complex(root.At(i, j), root.At(n+i, j))
		}
	}
	return out
}

// SaveSampler returns the current state of the PCG source.
func (c *CPU) SaveSampler() ([]byte, error) {
	return c.src.MarshalBinary()
}

// RestoreSampler rewinds the PCG source to a state from SaveSampler.
func (c *CPU) RestoreSampler(state []byte) error {
	return c.src.UnmarshalBinary(state)
}

func (c *CPU) Sample(weights []float64) int {
	w := make([]float64, len(weights))
	last := -1
	positive := 0
	for i, v := range weights {
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			w[i] = v
			last = i
			positive++
		}
	}

	switch positive {
	case 0:
		return -1
	case 1:
		return last
	}

	floats.Scale(1/floats.Sum(w), w)
	return int(distuv.NewCategorical(w, c.src).Rand())
}

// realEmbedding maps an r×c complex matrix onto its 2r×2c real form.
func realEmbedding(a *Matrix) *mat.Dense {
	emb := mat.NewDense(2*a.rows, 2*a.cols, nil)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			v := a.At(i, j)
			emb.Set(i, j, real(v))
			emb.Set(i, a.cols+j, -imag(v))
			emb.Set(a.rows+i, j, imag(v))
			emb.Set(a.rows+i, a.cols+j, real(v))
		}
	}
	return emb
}

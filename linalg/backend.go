package linalg

/*
Backend is the single point of contact between the state engine and the
arithmetic that executes it. A CPU implementation backed by gonum ships with
this package; accelerator implementations only need to satisfy this
interface; control logic never branches on which backend is in use.

Parameters shared by several methods:
  - dims: the per-subsystem dimensions of a product space, in index order
  - keep: subsystem positions to retain; the result is ordered as keep is
*/
type Backend interface {
	// Allocate returns a zero matrix of the requested shape.
	Allocate(rows, cols int) *Matrix

	// Mul returns a·b.
	Mul(a, b *Matrix) *Matrix

	// Kron returns the tensor (Kronecker) product a⊗b.
	Kron(a, b *Matrix) *Matrix

	// Trace returns the sum of the diagonal of a square matrix.
	Trace(a *Matrix) complex128

	// PartialTrace reduces a state vector (D×1) or density operator (D×D)
	// over dims to a density operator over the kept subsystems.
	PartialTrace(a *Matrix, dims []int, keep []int) *Matrix

	// Rank estimates the numerical rank of a, counting singular values
	// larger than tol times the largest one.
	Rank(a *Matrix, tol float64) int

	// Expm returns the matrix exponential of a square matrix.
	Expm(a *Matrix) *Matrix

	// SqrtPSD returns the positive square root of a Hermitian positive
	// semi-definite matrix. Negative eigenvalues from rounding are clamped.
	SqrtPSD(a *Matrix) *Matrix

	// Sample draws an index from the (unnormalized) weights. It returns -1
	// when no weight is positive.
	Sample(weights []float64) int
}

/*
SamplerState is implemented by backends whose random source can be saved and
restored. A call that fails and rolls back restores the source too, so a
seeded run draws the same outcomes whether or not the failed call happened.
*/
type SamplerState interface {
	SaveSampler() ([]byte, error)
	RestoreSampler(state []byte) error
}

// Product returns the product of dims, 1 for an empty list.
func Product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

// Strides returns row-major strides for a tensor with the given dims.
func Strides(dims []int) []int {
	strides := make([]int, len(dims))
	s := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = s
		s *= dims[i]
	}
	return strides
}

/*
Offsets enumerates, in row-major order over the listed subsystems, the flat
offset each joint sub-index contributes to an index of the full tensor.
Adding an entry of Offsets(dims, a) to an entry of Offsets(dims, b), where a
and b partition the subsystems, yields a flat index into the full tensor.
*/
func Offsets(dims []int, subsystems []int) []int {
	strides := Strides(dims)
	sub := make([]int, len(subsystems))
	for i, s := range subsystems {
		sub[i] = dims[s]
	}

	out := make([]int, Product(sub))
	counter := make([]int, len(sub))
	for n := range out {
		off := 0
		for i, s := range subsystems {
			off += counter[i] * strides[s]
		}
		out[n] = off

		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] < sub[i] {
				break
			}
			counter[i] = 0
		}
	}

	return out
}

// Complement returns the subsystem positions in [0, n) not present in keep,
// in ascending order.
func Complement(keep []int, n int) []int {
	seen := make(map[int]bool, len(keep))
	for _, k := range keep {
		seen[k] = true
	}

	out := make([]int, 0, n-len(keep))
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

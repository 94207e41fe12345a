package linalg

import (
	"math"
	"math/cmplx"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCPUArithmetic(t *testing.T) {
	Convey("Given a CPU backend", t, func() {
		cpu := NewCPU(7)

		Convey("Mul should agree with a hand computed product", func() {
			a := FromRows([]complex128{1, 2i}, []complex128{0, 1})
			b := FromRows([]complex128{1, 0}, []complex128{1i, 3})
			got := cpu.Mul(a, b)

			So(got.EqualApprox(FromRows([]complex128{-1, 6i}, []complex128{1i, 3}), 1e-12), ShouldBeTrue)
		})

		Convey("Kron should order the left factor as the slow index", func() {
			got := cpu.Kron(Column(1, 0), Column(0, 1))
			So(got.EqualApprox(Column(0, 1, 0, 0), 1e-12), ShouldBeTrue)

			x := FromRows([]complex128{0, 1}, []complex128{1, 0})
			k := cpu.Kron(x, Identity(2))
			So(k.At(0, 2), ShouldEqual, complex(1, 0))
			So(k.At(1, 3), ShouldEqual, complex(1, 0))
			So(k.At(0, 1), ShouldEqual, complex(0, 0))
		})

		Convey("Trace should sum the diagonal", func() {
			So(cpu.Trace(FromRows([]complex128{1, 5}, []complex128{7, 2i})), ShouldEqual, complex(1, 2))
		})
	})
}

func TestPartialTrace(t *testing.T) {
	Convey("Given a Bell state over two qubits", t, func() {
		cpu := NewCPU(1)
		s := complex(1/math.Sqrt2, 0)
		bell := Column(s, 0, 0, s)

		Convey("Tracing out either qubit leaves the maximally mixed state", func() {
			for _, keep := range [][]int{{0}, {1}} {
				reduced := cpu.PartialTrace(bell, []int{2, 2}, keep)
				So(reduced.EqualApprox(Identity(2).Scale(0.5), 1e-12), ShouldBeTrue)
			}
		})

		Convey("The density form should trace out identically", func() {
			rho := cpu.Mul(bell, bell.H())
			reduced := cpu.PartialTrace(rho, []int{2, 2}, []int{1})
			So(reduced.EqualApprox(Identity(2).Scale(0.5), 1e-12), ShouldBeTrue)
		})
	})

	Convey("Given a product of three subsystems", t, func() {
		cpu := NewCPU(1)
		a := Column(1, 0)
		b := Column(0, 0, 1)
		c := Column(0, 1)
		psi := cpu.Kron(cpu.Kron(a, b), c)

		Convey("Keeping subsystems out of order should follow the keep order", func() {
			reduced := cpu.PartialTrace(psi, []int{2, 3, 2}, []int{2, 0})
			expected := cpu.Kron(c, a)
			So(reduced.EqualApprox(cpu.Mul(expected, expected.H()), 1e-12), ShouldBeTrue)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given matrices of known rank", t, func() {
		cpu := NewCPU(1)
		v := Column(1, 1i, 0)

		So(cpu.Rank(cpu.Mul(v, v.H()), 1e-9), ShouldEqual, 1)
		So(cpu.Rank(Identity(3), 1e-9), ShouldEqual, 3)
		So(cpu.Rank(New(2, 2), 1e-9), ShouldEqual, 0)
		So(cpu.Rank(FromRows([]complex128{1, 1i}, []complex128{1i, -1}), 1e-9), ShouldEqual, 1)
	})
}

func TestExpm(t *testing.T) {
	Convey("Given a generator of a rotation", t, func() {
		cpu := NewCPU(1)
		theta := 1.3
		x := FromRows([]complex128{0, 1}, []complex128{1, 0})

		Convey("exp(-iθX) should equal cos θ I - i sin θ X", func() {
			got := cpu.Expm(x.Scale(complex(0, -theta)))
			want := Identity(2).Scale(complex(math.Cos(theta), 0)).Add(x.Scale(complex(0, -math.Sin(theta))))
			So(got.EqualApprox(want, 1e-12), ShouldBeTrue)
		})

		Convey("A large diagonal argument should survive scaling and squaring", func() {
			got := cpu.Expm(FromRows([]complex128{complex(0, 20), 0}, []complex128{0, 3}))
			So(cmplx.Abs(got.At(0, 0)-cmplx.Exp(complex(0, 20))), ShouldBeLessThan, 1e-9)
			So(math.Abs(real(got.At(1, 1))-math.Exp(3)), ShouldBeLessThan, 1e-9)
		})

		Convey("A complex nilpotent argument should give I + A", func() {
			a := FromRows([]complex128{0, complex(2, -1)}, []complex128{0, 0})
			want := FromRows([]complex128{1, complex(2, -1)}, []complex128{0, 1})
			So(cpu.Expm(a).EqualApprox(want, 1e-12), ShouldBeTrue)
		})

		Convey("The exponential of an anti-Hermitian matrix should be unitary", func() {
			h := FromRows([]complex128{0.3, complex(0.5, 0.2)}, []complex128{complex(0.5, -0.2), -1.1})
			u := cpu.Expm(h.Scale(complex(0, -2)))
			So(cpu.Mul(u.H(), u).EqualApprox(Identity(2), 1e-12), ShouldBeTrue)
		})
	})
}

func TestSqrtPSD(t *testing.T) {
	Convey("Given a Hermitian positive matrix", t, func() {
		cpu := NewCPU(1)
		a := FromRows([]complex128{2, 1i}, []complex128{-1i, 2})

		Convey("Its root squared should give the matrix back", func() {
			root := cpu.SqrtPSD(a)
			So(cpu.Mul(root, root).EqualApprox(a, 1e-10), ShouldBeTrue)
			So(root.IsHermitian(1e-10), ShouldBeTrue)
		})

		Convey("A projector is its own root", func() {
			p := FromRows([]complex128{0, 0}, []complex128{0, 1})
			So(cpu.SqrtPSD(p).EqualApprox(p, 1e-10), ShouldBeTrue)
		})
	})
}

func TestSample(t *testing.T) {
	Convey("Given seeded backends", t, func() {
		Convey("Equal seeds should produce equal draws", func() {
			a, b := NewCPU(99), NewCPU(99)
			w := []float64{0.2, 0.3, 0.5}
			for i := 0; i < 50; i++ {
				So(a.Sample(w), ShouldEqual, b.Sample(w))
			}
		})

		Convey("A certain outcome should always be returned", func() {
			cpu := NewCPU(3)
			for i := 0; i < 20; i++ {
				So(cpu.Sample([]float64{0, 1, 0}), ShouldEqual, 1)
			}
		})

		Convey("No positive weight should report -1", func() {
			So(NewCPU(3).Sample([]float64{0, -1e-18}), ShouldEqual, -1)
		})
	})
}

func TestOffsets(t *testing.T) {
	Convey("Given dims [2,3,2]", t, func() {
		dims := []int{2, 3, 2}

		So(Strides(dims), ShouldResemble, []int{6, 2, 1})
		So(Offsets(dims, []int{1}), ShouldResemble, []int{0, 2, 4})
		So(Offsets(dims, []int{2, 0}), ShouldResemble, []int{0, 6, 1, 7})
		So(Offsets(dims, nil), ShouldResemble, []int{0})
		So(Complement([]int{2, 0}, 3), ShouldResemble, []int{1})
	})
}

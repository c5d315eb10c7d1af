package models

import (
	"fmt"
	"strings"

	"github.com/ahmedtd/modax/toolbox"
)

// MaxDiffOrder is the highest spatial derivative the network propagates.
const MaxDiffOrder = 2

// Library builds the candidate-term matrix theta from u and its spatial
// derivatives.
//
// u is shape (batchSize, 1).  derivs[k-1] is the k-th spatial derivative of u,
// shape (batchSize, 1).  The columns of the result are u^p * d^k u for p in
// [0, polyOrder] (outer) and k in [0, len(derivs)] (inner), with d^0 u = 1.
// The result is shape (batchSize, (polyOrder+1)*(len(derivs)+1)).
func Library(u *toolbox.Var, derivs []*toolbox.Var, polyOrder int) *toolbox.Var {
	if polyOrder < 0 {
		panic(fmt.Sprintf("invalid polynomial order %d", polyOrder))
	}
	t := u.Tape()

	ones := toolbox.MakeAF32(u.Shape()...)
	ones.Fill(1)
	one := t.Const(ones)

	diff := append([]*toolbox.Var{one}, derivs...)

	cols := make([]*toolbox.Var, 0, (polyOrder+1)*len(diff))
	power := one
	for p := 0; p <= polyOrder; p++ {
		if p > 0 {
			power = toolbox.Mul(power, u)
		}
		for k, d := range diff {
			switch {
			case p == 0:
				cols = append(cols, d)
			case k == 0:
				cols = append(cols, power)
			default:
				cols = append(cols, toolbox.Mul(power, d))
			}
		}
	}

	return toolbox.ConcatCols(cols...)
}

// LibraryTerms names the columns produced by Library, e.g. "u u_x".
func LibraryTerms(polyOrder, diffOrder int) []string {
	terms := make([]string, 0, (polyOrder+1)*(diffOrder+1))
	for p := 0; p <= polyOrder; p++ {
		var power string
		switch p {
		case 0:
		case 1:
			power = "u"
		default:
			power = fmt.Sprintf("u^%d", p)
		}

		for k := 0; k <= diffOrder; k++ {
			var d string
			if k > 0 {
				d = "u_" + strings.Repeat("x", k)
			}
			switch {
			case power == "" && d == "":
				terms = append(terms, "1")
			case power == "":
				terms = append(terms, d)
			case d == "":
				terms = append(terms, power)
			default:
				terms = append(terms, power+" "+d)
			}
		}
	}
	return terms
}

package mathtools

import (
	"fmt"
	"math"
)

// RootKind classifies the real roots of a quadratic.
type RootKind string

const (
	TwoDistinctReal RootKind = "two_distinct_real"
	OneRepeatedReal RootKind = "one_repeated_real"
	NoReal          RootKind = "no_real"
)

// Description is the Spanish wording shown to students.
func (k RootKind) Description() string {
	switch k {
	case TwoDistinctReal:
		return "Dos soluciones reales distintas"
	case OneRepeatedReal:
		return "Una solución real doble (raíz repetida)"
	case NoReal:
		return "Sin soluciones reales (dos soluciones complejas conjugadas)"
	default:
		return string(k)
	}
}

// QuadraticSolution is the worked solution of ax² + bx + c = 0. Roots has
// two, one or zero entries exactly when Discriminant is positive, zero or
// negative.
type QuadraticSolution struct {
	Kind         string    `json:"tipo"`
	Equation     string    `json:"ecuacion_original"`
	A            float64   `json:"a"`
	B            float64   `json:"b"`
	C            float64   `json:"c"`
	Discriminant float64   `json:"discriminante"`
	Roots        []float64 `json:"soluciones"`
	RootKind     RootKind  `json:"root_kind"`
	Description  string    `json:"tipo_solucion"`
	Steps        []string  `json:"pasos"`
}

// SolveQuadratic solves ax² + bx + c = 0 over the reals using the
// quadratic formula. With two roots, the "+√Δ" root comes first. It fails
// with ErrDegenerateCoefficient when a is zero.
func SolveQuadratic(a, b, c float64) (QuadraticSolution, error) {
	if err := checkCoefficients(a, b, c); err != nil {
		return QuadraticSolution{}, err
	}
	if a == 0 {
		return QuadraticSolution{}, invalid(ErrDegenerateCoefficient,
			"El coeficiente 'a' no puede ser cero. Si a=0, use resolver_ecuacion_lineal.")
	}

	as, bs, cs := formatNumber(a), formatNumber(b), formatNumber(c)
	equation := fmt.Sprintf("%sx² + %sx + %s = 0", as, bs, cs)
	d := b*b - 4*a*c
	if !isFinite(d) {
		return QuadraticSolution{}, invalid(ErrInvalidArguments, "los coeficientes son demasiado grandes para calcular el discriminante")
	}

	steps := []string{
		"Ecuación dada: " + equation,
		fmt.Sprintf("Identificamos: a = %s, b = %s, c = %s", as, bs, cs),
		fmt.Sprintf("Calculamos el discriminante: Δ = b² - 4ac = %s² - 4(%s)(%s)", bs, as, cs),
		"Δ = " + fixed(d, 4),
	}

	twoA := 2 * a
	roots := []float64{}
	var kind RootKind
	switch {
	case d > 0:
		kind = TwoDistinctReal
		sq := math.Sqrt(d)
		x1 := (neg(b) + sq) / twoA
		x2 := (neg(b) - sq) / twoA
		if !isFinite(x1, x2) {
			return QuadraticSolution{}, errRootOverflow()
		}
		roots = append(roots, x1, x2)
		steps = append(steps,
			"Como Δ > 0, hay dos soluciones reales:",
			fmt.Sprintf("x₁ = (-b + √Δ) / 2a = (%s + √%s) / %s = %s",
				formatNumber(neg(b)), fixed(d, 4), formatNumber(twoA), fixed(x1, 4)),
			fmt.Sprintf("x₂ = (-b - √Δ) / 2a = (%s - √%s) / %s = %s",
				formatNumber(neg(b)), fixed(d, 4), formatNumber(twoA), fixed(x2, 4)),
		)
	case d == 0:
		kind = OneRepeatedReal
		x := neg(b) / twoA
		if !isFinite(x) {
			return QuadraticSolution{}, errRootOverflow()
		}
		roots = append(roots, x)
		steps = append(steps,
			"Como Δ = 0, hay una solución real doble:",
			fmt.Sprintf("x = -b / 2a = %s / %s = %s", formatNumber(neg(b)), formatNumber(twoA), fixed(x, 4)),
		)
	default:
		kind = NoReal
		steps = append(steps, "Como Δ < 0, no hay soluciones reales. Las soluciones son complejas.")
	}

	return QuadraticSolution{
		Kind:         "Ecuación Cuadrática",
		Equation:     equation,
		A:            a,
		B:            b,
		C:            c,
		Discriminant: d,
		Roots:        roots,
		RootKind:     kind,
		Description:  kind.Description(),
		Steps:        steps,
	}, nil
}

package mathtools

import (
	"fmt"
	"math"
)

// LinearSolution is the worked solution of mx + b = 0.
type LinearSolution struct {
	Kind         string   `json:"tipo"`
	Equation     string   `json:"ecuacion_original"`
	Root         float64  `json:"solucion"`
	Steps        []string `json:"pasos"`
	Verification string   `json:"verificacion"`
}

// SolveLinear solves mx + b = 0. It fails with ErrDegenerateCoefficient
// when m is zero.
func SolveLinear(m, b float64) (LinearSolution, error) {
	if err := checkCoefficients(m, b); err != nil {
		return LinearSolution{}, err
	}
	if m == 0 {
		return LinearSolution{}, invalid(ErrDegenerateCoefficient,
			"El coeficiente 'm' no puede ser cero. La ecuación 0x + %s = 0 no es lineal.", formatNumber(b))
	}

	equation := fmt.Sprintf("%sx + %s = 0", formatNumber(m), formatNumber(b))
	root := neg(b) / m
	residual := m*root + b
	if !isFinite(root, residual) {
		return LinearSolution{}, errRootOverflow()
	}

	steps := []string{
		"Ecuación dada: " + equation,
		fmt.Sprintf("Despejamos x: %sx = %s", formatNumber(m), formatNumber(neg(b))),
		fmt.Sprintf("Dividimos ambos lados por %s: x = %s/%s", formatNumber(m), formatNumber(neg(b)), formatNumber(m)),
		"Resultado: x = " + fixed(root, 4),
	}

	return LinearSolution{
		Kind:     "Ecuación Lineal",
		Equation: equation,
		Root:     root,
		Steps:    steps,
		Verification: fmt.Sprintf("Verificación: %s(%s) + %s = %s ≈ 0 ✓",
			formatNumber(m), fixed(root, 4), formatNumber(b), fixed(residual, 6)),
	}, nil
}

// checkCoefficients rejects NaN and infinite inputs, which JSON cannot carry
// back out anyway.
func checkCoefficients(vs ...float64) error {
	if !isFinite(vs...) {
		return invalid(ErrInvalidArguments, "los coeficientes deben ser números finitos")
	}
	return nil
}

func errRootOverflow() error {
	return invalid(ErrInvalidArguments, "la solución no se puede representar como un número finito")
}

func isFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

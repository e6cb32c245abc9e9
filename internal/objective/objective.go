// Package objective scores a device from the simulated mode coefficients of
// its output arms and supplies the complex weights that drive the adjoint
// sources.
package objective

import (
	"math"
	"math/cmplx"
)

// Evaluation is the result of scoring one set of mode coefficients.
type Evaluation struct {
	// Value is the scalar objective.
	Value float64
	// Powers are the normalized arm powers |a_k|^2 / P_in.
	Powers []float64
	// Weights are the Wirtinger derivatives dJ/d(conj a_k). The adjoint
	// run uses them as monitor source amplitudes.
	Weights []complex128
}

// ObjectiveFunction evaluates mode coefficients against per-arm targets.
// Lower scores are better (for minimization objectives).
type ObjectiveFunction interface {
	// Evaluate computes the objective from the output-arm mode
	// coefficients, the calibrated input power, and the per-arm target
	// power fractions.
	Evaluate(coeffs []complex128, inputPower float64, targets []float64) (*Evaluation, error)

	// Name returns the name of the objective function.
	Name() string

	// Direction returns whether we're minimizing (true) or maximizing (false).
	Direction() bool // true = minimize, false = maximize
}

// ObjectiveType represents the type of objective function
type ObjectiveType string

const (
	// ObjectiveSplitterMatch minimizes the squared distance between arm
	// powers and their targets.
	ObjectiveSplitterMatch ObjectiveType = "splitter_match"
	// ObjectiveTotalTransmission maximizes the summed arm power.
	ObjectiveTotalTransmission ObjectiveType = "total_transmission"
	// ObjectiveWorstArm maximizes the weakest arm power.
	ObjectiveWorstArm ObjectiveType = "worst_arm"
)

// NewObjectiveFunction creates an objective function from a type string
func NewObjectiveFunction(objType string) (ObjectiveFunction, error) {
	switch ObjectiveType(objType) {
	case ObjectiveSplitterMatch:
		return &SplitterMatchObjective{}, nil
	case ObjectiveTotalTransmission:
		return &TotalTransmissionObjective{}, nil
	case ObjectiveWorstArm:
		return &WorstArmObjective{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

func armPowers(coeffs []complex128, inputPower float64) ([]float64, error) {
	if len(coeffs) == 0 {
		return nil, &InvalidCoefficientsError{Reason: "no mode coefficients"}
	}
	if inputPower <= 0 || math.IsNaN(inputPower) {
		return nil, &InvalidCoefficientsError{Reason: "input power must be positive"}
	}
	powers := make([]float64, len(coeffs))
	for k, a := range coeffs {
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return nil, &InvalidCoefficientsError{Reason: "non-finite mode coefficient"}
		}
		powers[k] = (real(a)*real(a) + imag(a)*imag(a)) / inputPower
	}
	return powers, nil
}

// SplitterMatchObjective minimizes sum_k (P_k - target_k)^2.
type SplitterMatchObjective struct{}

func (o *SplitterMatchObjective) Name() string {
	return string(ObjectiveSplitterMatch)
}

func (o *SplitterMatchObjective) Direction() bool {
	return true // minimize
}

func (o *SplitterMatchObjective) Evaluate(coeffs []complex128, inputPower float64, targets []float64) (*Evaluation, error) {
	powers, err := armPowers(coeffs, inputPower)
	if err != nil {
		return nil, err
	}
	if len(targets) != len(powers) {
		return nil, &InvalidCoefficientsError{Reason: "target count does not match arm count"}
	}

	ev := &Evaluation{Powers: powers, Weights: make([]complex128, len(powers))}
	for k, p := range powers {
		diff := p - targets[k]
		ev.Value += diff * diff
		// dJ/dP_k = 2*diff, dP_k/d(conj a_k) = a_k / P_in.
		ev.Weights[k] = complex(2*diff/inputPower, 0) * coeffs[k]
	}
	return ev, nil
}

// TotalTransmissionObjective maximizes sum_k P_k, expressed as minimizing
// its negation so every objective shares the minimization convention.
type TotalTransmissionObjective struct{}

func (o *TotalTransmissionObjective) Name() string {
	return string(ObjectiveTotalTransmission)
}

func (o *TotalTransmissionObjective) Direction() bool {
	return true // minimize -sum(P)
}

func (o *TotalTransmissionObjective) Evaluate(coeffs []complex128, inputPower float64, _ []float64) (*Evaluation, error) {
	powers, err := armPowers(coeffs, inputPower)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{Powers: powers, Weights: make([]complex128, len(powers))}
	for k, p := range powers {
		ev.Value -= p
		ev.Weights[k] = complex(-1/inputPower, 0) * coeffs[k]
	}
	return ev, nil
}

// WorstArmObjective maximizes the weakest arm, minimizing -min_k P_k. The
// subgradient puts all weight on the weakest arm.
type WorstArmObjective struct{}

func (o *WorstArmObjective) Name() string {
	return string(ObjectiveWorstArm)
}

func (o *WorstArmObjective) Direction() bool {
	return true // minimize -min(P)
}

func (o *WorstArmObjective) Evaluate(coeffs []complex128, inputPower float64, _ []float64) (*Evaluation, error) {
	powers, err := armPowers(coeffs, inputPower)
	if err != nil {
		return nil, err
	}

	worst := 0
	for k, p := range powers {
		if p < powers[worst] {
			worst = k
		}
	}

	ev := &Evaluation{Powers: powers, Weights: make([]complex128, len(powers))}
	ev.Value = -powers[worst]
	ev.Weights[worst] = complex(-1/inputPower, 0) * coeffs[worst]
	return ev, nil
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

// InvalidCoefficientsError indicates mode coefficients that cannot be scored
type InvalidCoefficientsError struct {
	Reason string
}

func (e *InvalidCoefficientsError) Error() string {
	return "invalid mode coefficients: " + e.Reason
}

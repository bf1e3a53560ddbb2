// v0
// internal/classify/classify.go
package classify

import (
	"math"

	"nrgchamp/powerinsight/internal/model"
)

// adaptiveBandPct is the fraction of the normalised operating range that
// forms the warning band below the rated maximum when no explicit power
// threshold is configured.
const adaptiveBandPct = 0.02

// axisHeadroom is the margin added above the largest plotted value.
const axisHeadroom = 1.1

// Result is the outcome of a classification together with its styling.
type Result struct {
	Severity Severity `json:"severity"`
	Display
}

func result(s Severity) Result {
	return Result{Severity: s, Display: s.Display()}
}

// PowerFloor returns the lower bound of the power warning band. An explicit
// PowerAlertThreshold wins; otherwise the floor is derived from the
// operating envelope as max(min, max·(1 − 0.02·(max−min)/max)). A
// non-positive max contributes no band.
func PowerFloor(d model.Device) float64 {
	if d.PowerAlertThreshold != 0 {
		return d.PowerAlertThreshold
	}
	adjusted := 0.0
	if d.CustomPowerMax > 0 {
		adjusted = adaptiveBandPct * ((d.CustomPowerMax - d.CustomPowerMin) / d.CustomPowerMax)
	}
	return math.Max(d.CustomPowerMin, d.CustomPowerMax*(1-adjusted))
}

// Power classifies a power value in watts against the device envelope.
//
//	value > max            ⇒ critical
//	floor ≤ value ≤ max    ⇒ warning, or normal when min == max
//	otherwise              ⇒ normal
func Power(value float64, d model.Device) Result {
	if value > d.CustomPowerMax {
		return result(Critical)
	}
	if value >= PowerFloor(d) {
		if d.CustomPowerMin == d.CustomPowerMax {
			return result(Normal)
		}
		return result(Warning)
	}
	return result(Normal)
}

// Energy classifies an energy value against the device energy threshold.
// Without a threshold the result is always info.
//
//	value ≥ 2·t       ⇒ critical
//	t ≤ value < 2·t   ⇒ warning
//	otherwise         ⇒ normal
func Energy(value float64, d model.Device) Result {
	t := d.EnergyAlertThreshold
	if t == 0 {
		return result(Info)
	}
	switch {
	case value >= 2*t:
		return result(Critical)
	case value >= t:
		return result(Warning)
	}
	return result(Normal)
}

// PowerAxisMax returns the upper bound of a power chart axis: the observed
// peak or the rated maximum, whichever is larger, plus 10%.
func PowerAxisMax(peak float64, d model.Device) float64 {
	if peak > d.CustomPowerMax {
		return peak * axisHeadroom
	}
	return d.CustomPowerMax * axisHeadroom
}

// EnergyAxisMax returns the upper bound of an energy chart axis. The energy
// threshold is used when set and above the observed peak so the warning line
// stays visible.
func EnergyAxisMax(peak float64, d model.Device) float64 {
	if d.EnergyAlertThreshold > 0 && d.EnergyAlertThreshold > peak {
		return d.EnergyAlertThreshold * axisHeadroom
	}
	return peak * axisHeadroom
}

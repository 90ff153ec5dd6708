package estimator

import (
	"math"

	"go.viam.com/adaptkalman/control"
)

// Sample is one time aligned observation.
type Sample struct {
	T            float64
	Velocity     float64
	Acceleration float64
	YawRate      float64
}

// ValidateSamples checks that timestamps are finite and strictly increasing and that every channel
// value is finite. The first failure is returned as a *control.InvalidSampleError.
func ValidateSamples(samples []Sample) error {
	for i, s := range samples {
		for _, v := range []float64{s.T, s.Velocity, s.Acceleration, s.YawRate} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return control.NewInvalidSampleError(i, "non-finite value in %+v", s)
			}
		}
		if i > 0 && !(s.T > samples[i-1].T) {
			return control.NewInvalidSampleError(i, "timestamp %v does not follow %v", s.T, samples[i-1].T)
		}
	}
	return nil
}

// SamplesFromChannels zips equal length channels into samples. yawRate may be nil.
func SamplesFromChannels(t, velocity, acceleration, yawRate []float64) ([]Sample, error) {
	n := len(t)
	if len(velocity) != n || len(acceleration) != n || (yawRate != nil && len(yawRate) != n) {
		return nil, control.NewInvalidSampleError(-1,
			"channel lengths differ: t=%d velocity=%d acceleration=%d yaw=%d",
			n, len(velocity), len(acceleration), len(yawRate))
	}
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{T: t[i], Velocity: velocity[i], Acceleration: acceleration[i]}
		if yawRate != nil {
			samples[i].YawRate = yawRate[i]
		}
	}
	return samples, nil
}

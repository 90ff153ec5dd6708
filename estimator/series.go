package estimator

import (
	"sort"

	"github.com/pkg/errors"
)

// Column names understood by SampleSeries.Column.
const (
	ColumnTime         = "t"
	ColumnVelocity     = "u0"
	ColumnAcceleration = "a"
	ColumnYawRate      = "psi_dot"
	ColumnPosition     = "y"
	ColumnVelocityEst  = "v"
	ColumnRatio        = "r"
)

// SampleSeries holds the output of a run. All columns share the time base T and have the same
// length. It is append-only while a run is in progress and must be treated as read-only after.
type SampleSeries struct {
	T            []float64
	Velocity     []float64
	Acceleration []float64
	YawRate      []float64
	Position     []float64
	VelocityEst  []float64
	Ratio        []float64
}

func newSampleSeries(capacity int) *SampleSeries {
	return &SampleSeries{
		T:            make([]float64, 0, capacity),
		Velocity:     make([]float64, 0, capacity),
		Acceleration: make([]float64, 0, capacity),
		YawRate:      make([]float64, 0, capacity),
		Position:     make([]float64, 0, capacity),
		VelocityEst:  make([]float64, 0, capacity),
		Ratio:        make([]float64, 0, capacity),
	}
}

func (s *SampleSeries) append(sample Sample, position, velocity, ratio float64) {
	s.T = append(s.T, sample.T)
	s.Velocity = append(s.Velocity, sample.Velocity)
	s.Acceleration = append(s.Acceleration, sample.Acceleration)
	s.YawRate = append(s.YawRate, sample.YawRate)
	s.Position = append(s.Position, position)
	s.VelocityEst = append(s.VelocityEst, velocity)
	s.Ratio = append(s.Ratio, ratio)
}

// Len returns the number of entries.
func (s *SampleSeries) Len() int {
	return len(s.T)
}

// Column returns the named column.
func (s *SampleSeries) Column(name string) ([]float64, error) {
	switch name {
	case ColumnTime:
		return s.T, nil
	case ColumnVelocity:
		return s.Velocity, nil
	case ColumnAcceleration:
		return s.Acceleration, nil
	case ColumnYawRate:
		return s.YawRate, nil
	case ColumnPosition:
		return s.Position, nil
	case ColumnVelocityEst:
		return s.VelocityEst, nil
	case ColumnRatio:
		return s.Ratio, nil
	}
	return nil, errors.Errorf("unknown series column %q", name)
}

// Bounds returns the half-open index range [begin, end) of entries with tStart <= t <= tEnd.
func (s *SampleSeries) Bounds(tStart, tEnd float64) (int, int, error) {
	if tEnd < tStart {
		return 0, 0, errors.Errorf("slice end %v is before start %v", tEnd, tStart)
	}
	begin := sort.SearchFloat64s(s.T, tStart)
	end := sort.Search(len(s.T), func(i int) bool { return s.T[i] > tEnd })
	return begin, end, nil
}

// Slice returns a copy of entries [begin, end).
func (s *SampleSeries) Slice(begin, end int) (*SampleSeries, error) {
	if begin < 0 || end > s.Len() || begin > end {
		return nil, errors.Errorf("slice [%d, %d) out of range for series of length %d", begin, end, s.Len())
	}
	cp := func(col []float64) []float64 {
		return append([]float64(nil), col[begin:end]...)
	}
	return &SampleSeries{
		T:            cp(s.T),
		Velocity:     cp(s.Velocity),
		Acceleration: cp(s.Acceleration),
		YawRate:      cp(s.YawRate),
		Position:     cp(s.Position),
		VelocityEst:  cp(s.VelocityEst),
		Ratio:        cp(s.Ratio),
	}, nil
}

// Rebase returns a copy whose time base starts at zero at index i.
func (s *SampleSeries) Rebase(i int) (*SampleSeries, error) {
	out, err := s.Slice(0, s.Len())
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= s.Len() {
		return nil, errors.Errorf("rebase index %d out of range for series of length %d", i, s.Len())
	}
	t0 := s.T[i]
	for j := range out.T {
		out.T[j] -= t0
	}
	return out, nil
}

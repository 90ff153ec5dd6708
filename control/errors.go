package control

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError is returned when a filter is constructed from an invalid Config. It is fatal
// to the filter being constructed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid filter configuration field %q: %s", e.Field, e.Reason)
}

func newConfigurationError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvalidSampleError is returned for a sample that cannot be consumed: a non-positive time delta,
// a non-finite channel value, or timestamps that are out of order. A step that fails with this
// error leaves the filter state untouched.
type InvalidSampleError struct {
	// Index of the offending sample, or -1 when the failure is not tied to a series position.
	Index  int
	Reason string
}

func (e *InvalidSampleError) Error() string {
	if e.Index < 0 {
		return "invalid sample: " + e.Reason
	}
	return fmt.Sprintf("invalid sample at index %d: %s", e.Index, e.Reason)
}

// NewInvalidSampleError returns an InvalidSampleError for the sample at index.
func NewInvalidSampleError(index int, format string, args ...interface{}) error {
	return &InvalidSampleError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

// SingularCovarianceError is returned when the innovation covariance is not strictly positive.
// It is fatal to the run; raise covariance_floor to regularize.
type SingularCovarianceError struct {
	S float64
}

func (e *SingularCovarianceError) Error() string {
	return fmt.Sprintf("innovation covariance %g is not positive", e.S)
}

// IsConfigurationError returns whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsInvalidSample returns whether err is or wraps an InvalidSampleError.
func IsInvalidSample(err error) bool {
	var target *InvalidSampleError
	return errors.As(err, &target)
}

// IsSingularCovariance returns whether err is or wraps a SingularCovarianceError.
func IsSingularCovariance(err error) bool {
	var target *SingularCovarianceError
	return errors.As(err, &target)
}

// Package facematch compares facial signatures and extracts them from photos.
//
// A signature is the fixed-length embedding produced by the face recognition
// model. Two signatures belong to the same person when their Euclidean
// distance is strictly below the configured threshold.
package facematch

import (
	"errors"
	"fmt"
	"math"
)

const (
	// SignatureLength is the number of components produced by the embedding model.
	SignatureLength = 128
	// DefaultThreshold is stricter than the model's customary 0.6 to reduce false accepts.
	DefaultThreshold = 0.5
)

var (
	// ErrNoFaceDetected is returned when a photo contains no detectable face.
	ErrNoFaceDetected = errors.New("facematch: no face detected")
	// ErrMultipleFaces is returned when a photo contains more than one face.
	ErrMultipleFaces = errors.New("facematch: multiple faces detected")
	// ErrEmptyPhoto is returned when no image bytes were supplied.
	ErrEmptyPhoto = errors.New("facematch: empty photo")
	// ErrLengthMismatch is returned when two signatures cannot be compared.
	ErrLengthMismatch = errors.New("facematch: signature length mismatch")
)

// Signature is a facial embedding vector.
type Signature []float64

// Validate reports whether the signature has the expected length and finite components.
func (s Signature) Validate() error {
	if len(s) != SignatureLength {
		return fmt.Errorf("facematch: signature has %d components, want %d", len(s), SignatureLength)
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("facematch: component %d is not finite", i)
		}
	}
	return nil
}

// Clone returns an independent copy of the signature.
func (s Signature) Clone() Signature {
	if s == nil {
		return nil
	}
	out := make(Signature, len(s))
	copy(out, s)
	return out
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Signature) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrLengthMismatch
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// IsMatch reports whether a and b are closer than threshold. Signatures that
// cannot be compared never match.
func IsMatch(a, b Signature, threshold float64) bool {
	d, err := Distance(a, b)
	if err != nil {
		return false
	}
	return d < threshold
}

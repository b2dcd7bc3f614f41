package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/meal-access/internal/facematch"
)

// NormalizeDocument strips every character that is not an ASCII digit.
func NormalizeDocument(document string) string {
	var b strings.Builder
	b.Grow(len(document))
	for _, r := range document {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IdentityResolver finds the employee behind a document number or a photo.
type IdentityResolver struct {
	store     IdentityStore
	extractor facematch.Extractor
	threshold float64
	logger    *slog.Logger
}

// NewIdentityResolver constructs a resolver. A non-positive threshold selects facematch.DefaultThreshold.
func NewIdentityResolver(store IdentityStore, extractor facematch.Extractor, threshold float64, logger *slog.Logger) *IdentityResolver {
	if threshold <= 0 {
		threshold = facematch.DefaultThreshold
	}
	return &IdentityResolver{store: store, extractor: extractor, threshold: threshold, logger: defaultLogger(logger)}
}

// ResolveByDocument looks up the employee whose normalized document equals the input.
func (r *IdentityResolver) ResolveByDocument(ctx context.Context, document string) (Employee, error) {
	if r == nil || r.store == nil {
		return Employee{}, fmt.Errorf("identity store not configured")
	}
	normalized := NormalizeDocument(document)
	if normalized == "" {
		return Employee{}, fieldError("document", "document is required")
	}

	employee, err := r.store.FindEmployeeByDocument(ctx, normalized)
	if err != nil {
		return Employee{}, mapRepoError(err)
	}
	return employee, nil
}

// ResolveByPhoto extracts a signature from photo and returns the first
// enrolled employee permitted at venue whose signature matches.
func (r *IdentityResolver) ResolveByPhoto(ctx context.Context, photo []byte, venue string) (Employee, error) {
	if r == nil || r.store == nil {
		return Employee{}, fmt.Errorf("identity store not configured")
	}
	if r.extractor == nil {
		return Employee{}, fmt.Errorf("face extractor not configured")
	}
	if len(photo) == 0 {
		return Employee{}, fieldError("photo", "photo is required")
	}

	probe, err := r.extractor.Extract(ctx, photo)
	if err != nil {
		if errors.Is(err, facematch.ErrEmptyPhoto) {
			return Employee{}, fieldError("photo", "photo is required")
		}
		return Employee{}, err
	}

	candidates, err := r.store.ListEmployeesWithSignatureForVenue(ctx, venue)
	if err != nil {
		return Employee{}, mapRepoError(err)
	}

	// First match in repository order wins; there is no ranking.
	for _, candidate := range candidates {
		if !candidate.HasFaceSignature() || !candidate.Permits(venue) {
			continue
		}
		if facematch.IsMatch(probe, candidate.FaceSignature, r.threshold) {
			return candidate, nil
		}
	}

	serviceLogger(ctx, r.logger, "IdentityResolver", "ResolveByPhoto", "venue", venue).
		DebugContext(ctx, "no enrolled signature matched", "candidates", len(candidates))
	return Employee{}, ErrNotFound
}

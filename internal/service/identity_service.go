package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// ReferenceSource loads the participant reference table.
type ReferenceSource interface {
	Load(ctx context.Context) ([]models.ParticipantReference, error)
}

// IdentityService maps participant ids to the initials used in survey exports.
type IdentityService struct {
	source ReferenceSource
	logger *zap.Logger
}

// NewIdentityService constructs the resolver.
func NewIdentityService(source ReferenceSource, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{source: source, logger: logger}
}

// IdentityIndex is a loaded reference table.
type IdentityIndex struct {
	refs   map[int64]models.ParticipantReference
	shared map[string]int
}

// Load reads the reference table once so many participants can be resolved.
func (s *IdentityService) Load(ctx context.Context) (*IdentityIndex, error) {
	refs, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewIdentityIndex(refs), nil
}

// Resolve loads the table and resolves one participant.
func (s *IdentityService) Resolve(ctx context.Context, participantID int64) (*models.Identity, error) {
	index, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	identity, err := index.Resolve(participantID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("identity resolved",
		zap.Int64("participant_id", participantID),
		zap.String("initials", identity.Initials),
		zap.Bool("age_discriminated", identity.AgeDiscriminated),
	)
	return identity, nil
}

// NewIdentityIndex indexes reference rows. The first row for an id wins.
func NewIdentityIndex(refs []models.ParticipantReference) *IdentityIndex {
	index := &IdentityIndex{
		refs:   make(map[int64]models.ParticipantReference, len(refs)),
		shared: make(map[string]int),
	}
	for _, ref := range refs {
		if _, seen := index.refs[ref.ParticipantID]; seen {
			continue
		}
		ref.Initials = models.NormalizeInitials(ref.Initials)
		index.refs[ref.ParticipantID] = ref
		index.shared[ref.Initials]++
	}
	return index
}

// Resolve returns the identity of participantID. When other participants share
// the same initials the identity is age-discriminated and requires an age.
func (ix *IdentityIndex) Resolve(participantID int64) (*models.Identity, error) {
	ref, ok := ix.refs[participantID]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not in reference table", participantID)
	}
	if ref.Initials == "" {
		return nil, appErrors.Clonef(appErrors.ErrAmbiguousIdentity, "participant %d has no initials", participantID)
	}
	identity := &models.Identity{ParticipantID: participantID, Initials: ref.Initials, Age: ref.Age}
	if ix.shared[ref.Initials] > 1 {
		if ref.Age == nil {
			return nil, appErrors.Clonef(appErrors.ErrAmbiguousIdentity,
				"participant %d shares initials %s with %d others and has no age", participantID, ref.Initials, ix.shared[ref.Initials]-1)
		}
		identity.AgeDiscriminated = true
	}
	return identity, nil
}

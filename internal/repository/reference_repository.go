package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

const (
	referenceIDColumn       = "Participant ID #"
	referenceInitialsColumn = "Initials"
	referenceAgeColumn      = "Age"
)

// ReferenceRepository reads the participant reference table (ID, initials, age).
type ReferenceRepository struct {
	path   string
	logger *zap.Logger
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(path string, logger *zap.Logger) *ReferenceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceRepository{path: path, logger: logger}
}

// Load returns every row with a participant id. Initials are normalized.
func (r *ReferenceRepository) Load(ctx context.Context) ([]models.ParticipantReference, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrReferenceTableMissing, err, fmt.Sprintf("open reference table %s", r.path))
	}
	defer f.Close() //nolint:errcheck

	refs, err := r.read(ctx, f)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrReferenceTableMissing, err, fmt.Sprintf("read reference table %s", r.path))
	}
	return refs, nil
}

func (r *ReferenceRepository) read(ctx context.Context, src io.Reader) ([]models.ParticipantReference, error) {
	reader := newLenientCSVReader(src)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnIndex(header)
	idIdx, ok := cols[referenceIDColumn]
	if !ok {
		return nil, fmt.Errorf("missing %q column", referenceIDColumn)
	}
	initialsIdx, ok := cols[referenceInitialsColumn]
	if !ok {
		return nil, fmt.Errorf("missing %q column", referenceInitialsColumn)
	}
	ageIdx, hasAge := cols[referenceAgeColumn]

	refs := make([]models.ParticipantReference, 0, 64)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rawID := field(record, idIdx)
		if rawID == "" {
			continue
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			r.logger.Debug("skipping reference row with non-numeric id", zap.Int("line", line), zap.String("id", rawID))
			continue
		}
		ref := models.ParticipantReference{
			ParticipantID: id,
			Initials:      models.NormalizeInitials(field(record, initialsIdx)),
		}
		if hasAge {
			ref.Age = models.ParseAge(field(record, ageIdx))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

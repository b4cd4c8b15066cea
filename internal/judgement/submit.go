package judgement

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrJudgementNotFound indicates no judgement exists for the identifier.
	ErrJudgementNotFound = errors.New("judgement: not found")
	// ErrNotOpen indicates the judgement already received a rating. The
	// TO_JUDGE to JUDGED transition is one-way; a second submit is rejected
	// without mutation.
	ErrNotOpen = errors.New("judgement: already judged")
	// ErrWrongUser indicates the judgement belongs to a different annotator.
	ErrWrongUser = errors.New("judgement: assigned to a different user")
)

// Submit records the rating for an open judgement owned by the calling user
// and flips it to JUDGED.
func (e *Engine) Submit(ctx context.Context, judgementID, userID string, rating Rating) (Judgement, error) {
	var updated Judgement
	err := e.runner.Run(ctx, func(tx *gorm.DB) error {
		var row Judgement
		err := tx.Where("judgement_id = ?", judgementID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opSubmit, "not_found", fmt.Errorf("%w: %s", ErrJudgementNotFound, judgementID))
		}
		if err != nil {
			return newServiceError(opSubmit, "lookup_failed", err)
		}

		if row.UserID != userID {
			return newServiceError(opSubmit, "wrong_user", ErrWrongUser)
		}
		if row.Status != StatusToJudge {
			return newServiceError(opSubmit, "not_open", ErrNotOpen)
		}

		positions, err := encodePositions(rating.RelevancePositions)
		if err != nil {
			return newServiceError(opSubmit, "positions_encode_failed", err)
		}

		judgedAt := e.clock().UTC()
		level := rating.RelevanceLevel
		duration := rating.DurationMs

		row.Status = StatusJudged
		row.RelevanceLevel = &level
		row.RelevancePositions = positions
		row.DurationMs = &duration
		row.JudgedAt = &judgedAt

		if err := tx.Save(&row).Error; err != nil {
			return newServiceError(opSubmit, "save_failed", err)
		}
		updated = row
		return nil
	})
	if err != nil {
		e.logError(opSubmit, err)
		return Judgement{}, err
	}
	return updated, nil
}

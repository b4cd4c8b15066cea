package judgement

import (
	"context"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
)

// ExportRecord is one flattened judgement for reporting, with the pinned
// snapshot texts inlined verbatim.
type ExportRecord struct {
	JudgementID        string
	UserID             string
	Status             Status
	Mode               string
	Rotate             bool
	DocumentID         string
	DocumentVersion    int
	DocumentText       string
	QueryID            string
	QueryVersion       int
	QueryText          string
	RelevanceLevel     *int
	RelevancePositions []int
	DurationMs         *int64
	CreatedAt          time.Time
	JudgedAt           *time.Time
}

// Export returns every judgement ever created, any status, joined with its
// pinned document and query snapshots. Read-only.
func (e *Engine) Export(ctx context.Context) ([]ExportRecord, error) {
	tx := e.db.WithContext(ctx)

	var rows []Judgement
	if err := tx.Order("created_at ASC, judgement_id ASC").Find(&rows).Error; err != nil {
		err = newServiceError(opExport, "query_failed", err)
		e.logError(opExport, err)
		return nil, err
	}

	records := make([]ExportRecord, 0, len(rows))
	for _, row := range rows {
		documentVersion, err := catalog.DocumentVersionAt(tx, row.DocumentID, row.DocumentVersion)
		if err != nil {
			err = newServiceError(opExport, "document_version_failed", err)
			e.logError(opExport, err)
			return nil, err
		}
		queryVersion, err := catalog.QueryVersionAt(tx, row.QueryID, row.QueryVersion)
		if err != nil {
			err = newServiceError(opExport, "query_version_failed", err)
			e.logError(opExport, err)
			return nil, err
		}
		positions, err := row.Positions()
		if err != nil {
			err = newServiceError(opExport, "positions_decode_failed", err)
			e.logError(opExport, err)
			return nil, err
		}

		records = append(records, ExportRecord{
			JudgementID:        row.ID,
			UserID:             row.UserID,
			Status:             row.Status,
			Mode:               row.Mode,
			Rotate:             row.Rotate,
			DocumentID:         row.DocumentID,
			DocumentVersion:    row.DocumentVersion,
			DocumentText:       documentVersion.Text,
			QueryID:            row.QueryID,
			QueryVersion:       row.QueryVersion,
			QueryText:          queryVersion.Text,
			RelevanceLevel:     row.RelevanceLevel,
			RelevancePositions: positions,
			DurationMs:         row.DurationMs,
			CreatedAt:          row.CreatedAt,
			JudgedAt:           row.JudgedAt,
		})
	}
	return records, nil
}

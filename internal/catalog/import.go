package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentImport is one incoming document row. A non-nil Err marks a row the
// decoder already rejected; it is carried through so the outcome list lines up
// with the input.
type DocumentImport struct {
	DocumentID    string
	Text          string
	AnnotateParts []string
	Err           error
}

// QueryImport is one incoming query row.
type QueryImport struct {
	QueryID string
	Text    string
	Err     error
}

// ImportOutcome reports the result of importing a single row. Failed rows do
// not abort the rest of the batch.
type ImportOutcome struct {
	ID      string
	Version int
	Err     error
}

// ImportDocuments appends a new content snapshot for every valid row,
// creating the document record on first sight. Each row commits on its own so
// a malformed row only fails itself.
func (s *Service) ImportDocuments(ctx context.Context, rows []DocumentImport) []ImportOutcome {
	outcomes := make([]ImportOutcome, 0, len(rows))
	for _, row := range rows {
		outcome := ImportOutcome{ID: row.DocumentID}
		switch {
		case row.Err != nil:
			outcome.Err = row.Err
		case strings.TrimSpace(row.DocumentID) == "":
			outcome.Err = fmt.Errorf("empty document id")
		case row.Text == "":
			outcome.Err = fmt.Errorf("empty document text")
		default:
			outcome.Version, outcome.Err = s.importDocumentRow(ctx, row)
		}
		if outcome.Err != nil {
			s.logError(opImportDocuments, "row_failed", outcome.Err, zap.String("document_id", row.DocumentID))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *Service) importDocumentRow(ctx context.Context, row DocumentImport) (int, error) {
	encodedParts, err := EncodeParts(row.AnnotateParts)
	if err != nil {
		return 0, err
	}

	var version int
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.FirstOrCreate(&Document{ID: row.DocumentID}).Error; err != nil {
			return err
		}
		current, err := CurrentDocumentVersion(tx, row.DocumentID)
		switch {
		case err == nil:
			version = current.Version + 1
		case isVersionNotFound(err):
			version = 1
		default:
			return err
		}
		return tx.Create(&DocumentVersion{
			DocumentID:    row.DocumentID,
			Version:       version,
			Text:          row.Text,
			AnnotateParts: encodedParts,
		}).Error
	})
	if txErr != nil {
		return 0, txErr
	}
	return version, nil
}

// ImportQueries appends a new content snapshot for every valid row, creating
// the query record on first sight.
func (s *Service) ImportQueries(ctx context.Context, rows []QueryImport) []ImportOutcome {
	outcomes := make([]ImportOutcome, 0, len(rows))
	for _, row := range rows {
		outcome := ImportOutcome{ID: row.QueryID}
		switch {
		case row.Err != nil:
			outcome.Err = row.Err
		case strings.TrimSpace(row.QueryID) == "":
			outcome.Err = fmt.Errorf("empty query id")
		case row.Text == "":
			outcome.Err = fmt.Errorf("empty query text")
		default:
			outcome.Version, outcome.Err = s.importQueryRow(ctx, row)
		}
		if outcome.Err != nil {
			s.logError(opImportQueries, "row_failed", outcome.Err, zap.String("query_id", row.QueryID))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *Service) importQueryRow(ctx context.Context, row QueryImport) (int, error) {
	var version int
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.FirstOrCreate(&Query{ID: row.QueryID}).Error; err != nil {
			return err
		}
		current, err := CurrentQueryVersion(tx, row.QueryID)
		switch {
		case err == nil:
			version = current.Version + 1
		case isVersionNotFound(err):
			version = 1
		default:
			return err
		}
		return tx.Create(&QueryVersion{
			QueryID: row.QueryID,
			Version: version,
			Text:    row.Text,
		}).Error
	})
	if txErr != nil {
		return 0, txErr
	}
	return version, nil
}

func isVersionNotFound(err error) bool {
	return errors.Is(err, ErrDocumentVersionNotFound) || errors.Is(err, ErrQueryVersionNotFound)
}

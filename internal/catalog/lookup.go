package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrSettingsNotFound indicates the singleton settings row is missing.
	ErrSettingsNotFound = errors.New("catalog: settings row not found")
	// ErrDocumentVersionNotFound indicates a document has no content snapshot.
	ErrDocumentVersionNotFound = errors.New("catalog: document version not found")
	// ErrQueryVersionNotFound indicates a query has no content snapshot.
	ErrQueryVersionNotFound = errors.New("catalog: query version not found")
)

// The lookup helpers below run on a caller-provided transaction handle so the
// distribution engine can issue them inside its serializable transaction.

// LoadSettings reads the singleton settings row.
func LoadSettings(tx *gorm.DB) (Settings, error) {
	var settings Settings
	err := tx.Where("settings_key = ?", SettingsKey).Take(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{}, ErrSettingsNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// DistinctPriorities returns every priority present among judgement pairs,
// descending and deduplicated.
func DistinctPriorities(tx *gorm.DB) ([]int, error) {
	var priorities []int
	err := tx.Model(&JudgementPair{}).
		Distinct("priority").
		Order("priority DESC").
		Pluck("priority", &priorities).Error
	if err != nil {
		return nil, err
	}
	return priorities, nil
}

// CandidatesForPriority returns the pairs at the given priority that still
// need judgements, least-served first. Ties on assigned count keep pair key
// order so the result is deterministic.
func CandidatesForPriority(tx *gorm.DB, priority, targetPerPair int) ([]Candidate, error) {
	var candidates []Candidate
	err := tx.Raw(`
		SELECT p.document_id AS document_id,
		       p.query_id AS query_id,
		       COUNT(j.judgement_id) AS assigned_count
		FROM judgement_pairs p
		LEFT JOIN judgements j
		  ON j.document_id = p.document_id AND j.query_id = p.query_id
		WHERE p.priority = ?
		GROUP BY p.document_id, p.query_id
		HAVING COUNT(j.judgement_id) < ?
		ORDER BY assigned_count ASC, p.document_id ASC, p.query_id ASC`,
		priority, targetPerPair).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// CurrentDocumentVersion returns the snapshot with the highest version number
// for the document.
func CurrentDocumentVersion(tx *gorm.DB, documentID string) (DocumentVersion, error) {
	var version DocumentVersion
	err := tx.Where("document_id = ?", documentID).
		Order("version DESC").
		Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentVersion{}, fmt.Errorf("%w: %s", ErrDocumentVersionNotFound, documentID)
	}
	if err != nil {
		return DocumentVersion{}, err
	}
	return version, nil
}

// DocumentVersionAt returns the exact snapshot a judgement is pinned to.
func DocumentVersionAt(tx *gorm.DB, documentID string, version int) (DocumentVersion, error) {
	var snapshot DocumentVersion
	err := tx.Where("document_id = ? AND version = ?", documentID, version).
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentVersion{}, fmt.Errorf("%w: %s v%d", ErrDocumentVersionNotFound, documentID, version)
	}
	if err != nil {
		return DocumentVersion{}, err
	}
	return snapshot, nil
}

// QueryVersionAt returns the exact snapshot a judgement is pinned to.
func QueryVersionAt(tx *gorm.DB, queryID string, version int) (QueryVersion, error) {
	var snapshot QueryVersion
	err := tx.Where("query_id = ? AND version = ?", queryID, version).
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return QueryVersion{}, fmt.Errorf("%w: %s v%d", ErrQueryVersionNotFound, queryID, version)
	}
	if err != nil {
		return QueryVersion{}, err
	}
	return snapshot, nil
}

// CurrentQueryVersion returns the snapshot with the highest version number
// for the query.
func CurrentQueryVersion(tx *gorm.DB, queryID string) (QueryVersion, error) {
	var version QueryVersion
	err := tx.Where("query_id = ?", queryID).
		Order("version DESC").
		Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return QueryVersion{}, fmt.Errorf("%w: %s", ErrQueryVersionNotFound, queryID)
	}
	if err != nil {
		return QueryVersion{}, err
	}
	return version, nil
}

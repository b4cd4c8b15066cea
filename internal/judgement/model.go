package judgement

import (
	"encoding/json"
	"time"
)

// Status tracks the lifecycle of a judgement. The only transition is
// TO_JUDGE to JUDGED and it is terminal.
type Status string

const (
	// StatusToJudge marks work handed out but not yet rated.
	StatusToJudge Status = "TO_JUDGE"
	// StatusJudged marks work with a submitted rating.
	StatusJudged Status = "JUDGED"
)

// Judgement is one assignment of a judgement pair to one annotator, pinned to
// the document and query snapshots that were current at creation time.
// Judgements are never deleted; the table is the audit trail.
type Judgement struct {
	ID                 string     `gorm:"column:judgement_id;primaryKey;size:190;not null"`
	UserID             string     `gorm:"column:user_id;size:190;not null;index:idx_judgements_user_status,priority:1"`
	Status             Status     `gorm:"column:status;size:16;not null;index:idx_judgements_user_status,priority:2"`
	Mode               string     `gorm:"column:mode;size:32;not null"`
	Rotate             bool       `gorm:"column:rotate;not null"`
	DocumentID         string     `gorm:"column:document_id;size:190;not null;index:idx_judgements_pair,priority:1"`
	DocumentVersion    int        `gorm:"column:document_version;not null"`
	QueryID            string     `gorm:"column:query_id;size:190;not null;index:idx_judgements_pair,priority:2"`
	QueryVersion       int        `gorm:"column:query_version;not null"`
	RelevanceLevel     *int       `gorm:"column:relevance_level"`
	RelevancePositions string     `gorm:"column:relevance_positions_json;type:text;not null;default:'[]'"`
	DurationMs         *int64     `gorm:"column:duration_used_to_judge_ms"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	JudgedAt           *time.Time `gorm:"column:judged_at"`
}

// TableName provides the explicit table binding for GORM.
func (Judgement) TableName() string {
	return "judgements"
}

// Positions decodes the marked relevance positions.
func (j Judgement) Positions() ([]int, error) {
	if j.RelevancePositions == "" {
		return nil, nil
	}
	var positions []int
	if err := json.Unmarshal([]byte(j.RelevancePositions), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func encodePositions(positions []int) (string, error) {
	if positions == nil {
		positions = []int{}
	}
	encoded, err := json.Marshal(positions)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Rating is the outcome an annotator submits for an open judgement.
type Rating struct {
	RelevanceLevel     int
	RelevancePositions []int
	DurationMs         int64
}

// OpenItem is the work-item view handed to the annotation UI for a judgement
// that still awaits a rating.
type OpenItem struct {
	ID                 string   `json:"judgement_id"`
	QueryText          string   `json:"query_text"`
	DocAnnotationParts []string `json:"doc_annotation_parts"`
	Rotate             bool     `json:"rotate"`
	Mode               string   `json:"mode"`
}

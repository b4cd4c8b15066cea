package catalog

import "encoding/json"

// SettingsKey is the fixed primary key of the singleton settings row.
const SettingsKey = "singleton"

// Judgement modes supported by the annotation UI.
const (
	ModeBinary = "BINARY"
	ModeGraded = "GRADED"
)

// Document is an annotatable document. Its content lives in version snapshots.
type Document struct {
	ID string `gorm:"column:document_id;primaryKey;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// DocumentVersion is an immutable content snapshot of a document. The current
// version of a document is the row with the highest version number.
type DocumentVersion struct {
	DocumentID    string `gorm:"column:document_id;primaryKey;size:190;not null"`
	Version       int    `gorm:"column:version;primaryKey;not null"`
	Text          string `gorm:"column:text;type:text;not null"`
	AnnotateParts string `gorm:"column:annotate_parts_json;type:text;not null;default:'[]'"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentVersion) TableName() string {
	return "document_versions"
}

// Parts decodes the annotatable text segments stored with the snapshot.
func (v DocumentVersion) Parts() ([]string, error) {
	if v.AnnotateParts == "" {
		return nil, nil
	}
	var parts []string
	if err := json.Unmarshal([]byte(v.AnnotateParts), &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// EncodeParts serializes annotatable text segments for storage.
func EncodeParts(parts []string) (string, error) {
	if parts == nil {
		parts = []string{}
	}
	encoded, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Query is a search query documents are judged against.
type Query struct {
	ID string `gorm:"column:query_id;primaryKey;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Query) TableName() string {
	return "queries"
}

// QueryVersion is an immutable content snapshot of a query.
type QueryVersion struct {
	QueryID string `gorm:"column:query_id;primaryKey;size:190;not null"`
	Version int    `gorm:"column:version;primaryKey;not null"`
	Text    string `gorm:"column:text;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (QueryVersion) TableName() string {
	return "query_versions"
}

// JudgementPair marks a (document, query) combination as eligible for
// annotation. Pairs are only ever replaced wholesale by the import job.
type JudgementPair struct {
	DocumentID string `gorm:"column:document_id;primaryKey;size:190;not null"`
	QueryID    string `gorm:"column:query_id;primaryKey;size:190;not null"`
	Priority   int    `gorm:"column:priority;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (JudgementPair) TableName() string {
	return "judgement_pairs"
}

// Settings is the singleton configuration row. The fixed primary key value
// guarantees at most one row; the seed migration guarantees at least one.
type Settings struct {
	Key                     string `gorm:"column:settings_key;primaryKey;size:16;not null"`
	AnnotationTargetPerUser int    `gorm:"column:annotation_target_per_user;not null"`
	AnnotationTargetPerPair int    `gorm:"column:annotation_target_per_pair;not null"`
	JudgementMode           string `gorm:"column:judgement_mode;size:32;not null"`
	RotateDocumentText      bool   `gorm:"column:rotate_document_text;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (Settings) TableName() string {
	return "settings"
}

// Candidate is a judgement pair eligible for assignment at some priority,
// annotated with how many judgements already reference it across all users.
type Candidate struct {
	DocumentID    string `gorm:"column:document_id"`
	QueryID       string `gorm:"column:query_id"`
	AssignedCount int    `gorm:"column:assigned_count"`
}

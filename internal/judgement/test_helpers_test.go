package judgement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
	"github.com/annolab/judgepool/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// passthroughRunner executes the unit of work in a plain transaction. SQLite
// transactions are serializable already; the retry layer is exercised in the
// database package tests.
type passthroughRunner struct {
	db *gorm.DB
}

func (r passthroughRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("judgement-%d", g.next), nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:judgepool_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&catalog.Document{},
		&catalog.DocumentVersion{},
		&catalog.Query{},
		&catalog.QueryVersion{},
		&catalog.JudgementPair{},
		&catalog.Settings{},
		&users.User{},
		&Judgement{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, batchSize int, strictCap bool) *Engine {
	t.Helper()

	engine, err := NewEngine(EngineConfig{
		Database:         db,
		Runner:           passthroughRunner{db: db},
		PreloadBatchSize: batchSize,
		StrictUserCap:    strictCap,
		IDProvider:       &sequentialIDGenerator{},
		Clock:            func() time.Time { return time.Unix(1700000600, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("unexpected engine constructor error: %v", err)
	}
	return engine
}

func seedSettings(t *testing.T, db *gorm.DB, perUser, perPair int, rotate bool) {
	t.Helper()
	settings := catalog.Settings{
		Key:                     catalog.SettingsKey,
		AnnotationTargetPerUser: perUser,
		AnnotationTargetPerPair: perPair,
		JudgementMode:           catalog.ModeGraded,
		RotateDocumentText:      rotate,
	}
	if err := db.Create(&settings).Error; err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
}

func seedUser(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	if err := db.Create(&users.User{ID: userID}).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
}

func seedDocument(t *testing.T, db *gorm.DB, documentID string, version int, text string, parts ...string) {
	t.Helper()
	if version == 1 {
		if err := db.Create(&catalog.Document{ID: documentID}).Error; err != nil {
			t.Fatalf("failed to seed document %s: %v", documentID, err)
		}
	}
	encoded, err := catalog.EncodeParts(parts)
	if err != nil {
		t.Fatalf("failed to encode parts: %v", err)
	}
	snapshot := catalog.DocumentVersion{
		DocumentID:    documentID,
		Version:       version,
		Text:          text,
		AnnotateParts: encoded,
	}
	if err := db.Create(&snapshot).Error; err != nil {
		t.Fatalf("failed to seed document version %s/%d: %v", documentID, version, err)
	}
}

func seedQuery(t *testing.T, db *gorm.DB, queryID string, version int, text string) {
	t.Helper()
	if version == 1 {
		if err := db.Create(&catalog.Query{ID: queryID}).Error; err != nil {
			t.Fatalf("failed to seed query %s: %v", queryID, err)
		}
	}
	snapshot := catalog.QueryVersion{QueryID: queryID, Version: version, Text: text}
	if err := db.Create(&snapshot).Error; err != nil {
		t.Fatalf("failed to seed query version %s/%d: %v", queryID, version, err)
	}
}

func seedPair(t *testing.T, db *gorm.DB, documentID, queryID string, priority int) {
	t.Helper()
	pair := catalog.JudgementPair{DocumentID: documentID, QueryID: queryID, Priority: priority}
	if err := db.Create(&pair).Error; err != nil {
		t.Fatalf("failed to seed pair (%s, %s): %v", documentID, queryID, err)
	}
}

func countJudgements(t *testing.T, db *gorm.DB, conditions ...interface{}) int {
	t.Helper()
	query := db.Model(&Judgement{})
	if len(conditions) > 0 {
		query = query.Where(conditions[0], conditions[1:]...)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		t.Fatalf("failed to count judgements: %v", err)
	}
	return int(total)
}

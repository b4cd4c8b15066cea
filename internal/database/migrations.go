package database

import (
	"errors"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedDefaultSettings = "2026-07-14_seed_default_settings"

// Defaults for a freshly created settings row. Admins adjust them through the
// settings endpoint afterwards.
const (
	defaultAnnotationTargetPerUser = 50
	defaultAnnotationTargetPerPair = 3
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedDefaultSettings, apply: seedDefaultSettings},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedDefaultSettings guarantees the singleton settings row exists.
func seedDefaultSettings(db *gorm.DB) error {
	settings := catalog.Settings{
		Key:                     catalog.SettingsKey,
		AnnotationTargetPerUser: defaultAnnotationTargetPerUser,
		AnnotationTargetPerPair: defaultAnnotationTargetPerPair,
		JudgementMode:           catalog.ModeGraded,
		RotateDocumentText:      true,
	}
	return db.Where("settings_key = ?", catalog.SettingsKey).
		FirstOrCreate(&settings).Error
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable operation.reason code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "catalog.service.new"
	opSettings        = "catalog.settings"
	opUpdateSettings  = "catalog.update_settings"
	opReplacePairs    = "catalog.replace_pairs"
	opImportDocuments = "catalog.import_documents"
	opImportQueries   = "catalog.import_queries"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service owns writes to the catalog tables: the settings row, the judgement
// pair set and the versioned document/query snapshots.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Settings reads the singleton settings row.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings, err := LoadSettings(s.db.WithContext(ctx))
	if err != nil {
		s.logError(opSettings, "load_failed", err)
		return Settings{}, newServiceError(opSettings, "load_failed", err)
	}
	return settings, nil
}

// UpdateSettings overwrites the configurable fields of the settings row. The
// row itself is never created or deleted here; the seed migration guarantees
// its existence.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	if settings.AnnotationTargetPerUser < 1 || settings.AnnotationTargetPerPair < 1 {
		err := fmt.Errorf("annotation targets must be at least 1")
		s.logError(opUpdateSettings, "invalid_targets", err)
		return newServiceError(opUpdateSettings, "invalid_targets", err)
	}
	mode := strings.TrimSpace(settings.JudgementMode)
	if mode != ModeBinary && mode != ModeGraded {
		err := fmt.Errorf("unknown judgement mode %q", settings.JudgementMode)
		s.logError(opUpdateSettings, "invalid_mode", err)
		return newServiceError(opUpdateSettings, "invalid_mode", err)
	}

	result := s.db.WithContext(ctx).Model(&Settings{}).
		Where("settings_key = ?", SettingsKey).
		Updates(map[string]interface{}{
			"annotation_target_per_user": settings.AnnotationTargetPerUser,
			"annotation_target_per_pair": settings.AnnotationTargetPerPair,
			"judgement_mode":             mode,
			"rotate_document_text":       settings.RotateDocumentText,
		})
	if result.Error != nil {
		s.logError(opUpdateSettings, "update_failed", result.Error)
		return newServiceError(opUpdateSettings, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logError(opUpdateSettings, "settings_missing", ErrSettingsNotFound)
		return newServiceError(opUpdateSettings, "settings_missing", ErrSettingsNotFound)
	}
	return nil
}

// ReplaceAllPairs swaps the complete judgement pair set inside one
// transaction. The replacement is all-or-nothing: a single invalid pair
// aborts the whole batch and leaves the previous set in place.
func (s *Service) ReplaceAllPairs(ctx context.Context, pairs []JudgementPair) error {
	for _, pair := range pairs {
		if strings.TrimSpace(pair.DocumentID) == "" || strings.TrimSpace(pair.QueryID) == "" {
			err := fmt.Errorf("pair with empty document or query id")
			s.logError(opReplacePairs, "invalid_pair", err)
			return newServiceError(opReplacePairs, "invalid_pair", err)
		}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&JudgementPair{}).Error; err != nil {
			return err
		}
		for _, pair := range pairs {
			if err := tx.Create(&pair).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opReplacePairs, "replace_failed", txErr)
		return newServiceError(opReplacePairs, "replace_failed", txErr)
	}

	s.logger.Info("judgement pairs replaced", zap.Int("pair_count", len(pairs)))
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}

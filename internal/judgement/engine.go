package judgement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
	"github.com/annolab/judgepool/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingRunner   = errors.New("transaction runner is required")
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
	opEngineNew = "judgement.engine.new"
	opPreload   = "judgement.preload"
	opSubmit    = "judgement.submit"
	opExport    = "judgement.export"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// TxRunner executes a unit of work inside a serializable transaction,
// retrying on conflict. The persistence layer supplies the implementation.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EngineConfig describes the dependencies of the distribution engine.
type EngineConfig struct {
	Database *gorm.DB
	Runner   TxRunner
	// PreloadBatchSize is the number of open judgements a preload call tops
	// the caller up to.
	PreloadBatchSize int
	// StrictUserCap additionally clamps a preload batch to the user's
	// remaining per-user quota. Off by default: the historical behaviour lets
	// the final batch overshoot the per-user target by up to one batch.
	StrictUserCap bool
	IDProvider    IDProvider
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Engine is the scheduler that assigns judgement pairs to annotators. All
// quota and priority decisions happen inside one serializable transaction per
// call; correctness under concurrent callers is delegated to the store's
// isolation level plus the retry runner.
type Engine struct {
	db               *gorm.DB
	runner           TxRunner
	preloadBatchSize int
	strictUserCap    bool
	idProvider       IDProvider
	clock            func() time.Time
	logger           *zap.Logger
}

// NewEngine constructs the distribution engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opEngineNew, "missing_database", errMissingDatabase)
	}
	if cfg.Runner == nil {
		return nil, newServiceError(opEngineNew, "missing_runner", errMissingRunner)
	}

	batchSize := cfg.PreloadBatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Engine{
		db:               cfg.Database,
		runner:           cfg.Runner,
		preloadBatchSize: batchSize,
		strictUserCap:    cfg.StrictUserCap,
		idProvider:       idProvider,
		clock:            clock,
		logger:           logger,
	}, nil
}

// Preload tops the user up with open judgements and returns their current
// TO_JUDGE work items. When the user has exhausted the per-user target or
// still holds a full batch of open work, no rows are written and the call is
// a pure read.
func (e *Engine) Preload(ctx context.Context, userID string) ([]OpenItem, error) {
	var items []OpenItem
	err := e.runner.Run(ctx, func(tx *gorm.DB) error {
		// The runner may re-execute this closure from scratch.
		items = nil

		if _, err := users.Lookup(tx, userID); err != nil {
			return newServiceError(opPreload, "user_lookup_failed", err)
		}
		settings, err := catalog.LoadSettings(tx)
		if err != nil {
			return newServiceError(opPreload, "settings_lookup_failed", err)
		}
		stats, err := LoadUserStats(tx, userID)
		if err != nil {
			return newServiceError(opPreload, "user_stats_failed", err)
		}

		remainingForUser := settings.AnnotationTargetPerUser - stats.TotalAssigned
		remainingToPreload := e.preloadBatchSize - stats.OpenCount

		if remainingForUser >= 1 && remainingToPreload >= 1 {
			if e.strictUserCap && remainingForUser < remainingToPreload {
				remainingToPreload = remainingForUser
			}
			created, err := e.assign(tx, userID, settings, remainingToPreload)
			if err != nil {
				return err
			}
			if created > 0 {
				e.logger.Info("judgements preloaded",
					zap.String("user_id", userID),
					zap.Int("created", created))
			}
		}

		items, err = e.openItems(tx, userID)
		return err
	})
	if err != nil {
		e.logError(opPreload, err, zap.String("user_id", userID))
		return nil, err
	}
	return items, nil
}

// assign walks the priority bands from highest to lowest and creates new
// TO_JUDGE judgements for the least-served eligible pairs until the batch
// budget is spent or candidates run out. Returns the number of rows created.
func (e *Engine) assign(tx *gorm.DB, userID string, settings catalog.Settings, remainingToPreload int) (int, error) {
	priorities, err := catalog.DistinctPriorities(tx)
	if err != nil {
		return 0, newServiceError(opPreload, "priorities_failed", err)
	}

	created := 0
	for _, priority := range priorities {
		if remainingToPreload < 1 {
			break
		}

		candidates, err := catalog.CandidatesForPriority(tx, priority, settings.AnnotationTargetPerPair)
		if err != nil {
			return created, newServiceError(opPreload, "candidates_failed", err)
		}
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > remainingToPreload {
			candidates = candidates[:remainingToPreload]
		}

		// One flag per sub-batch, applied to every row in it.
		rotate := false
		if settings.RotateDocumentText {
			rotate, err = NextRotationFlag(tx)
			if err != nil {
				return created, newServiceError(opPreload, "rotation_failed", err)
			}
		}

		createdAt := e.clock().UTC()
		for _, candidate := range candidates {
			documentVersion, err := catalog.CurrentDocumentVersion(tx, candidate.DocumentID)
			if err != nil {
				return created, newServiceError(opPreload, "document_version_failed", err)
			}
			queryVersion, err := catalog.CurrentQueryVersion(tx, candidate.QueryID)
			if err != nil {
				return created, newServiceError(opPreload, "query_version_failed", err)
			}
			id, err := e.idProvider.NewID()
			if err != nil {
				return created, newServiceError(opPreload, "id_generation_failed", err)
			}

			row := Judgement{
				ID:                 id,
				UserID:             userID,
				Status:             StatusToJudge,
				Mode:               settings.JudgementMode,
				Rotate:             rotate,
				DocumentID:         candidate.DocumentID,
				DocumentVersion:    documentVersion.Version,
				QueryID:            candidate.QueryID,
				QueryVersion:       queryVersion.Version,
				RelevancePositions: "[]",
				CreatedAt:          createdAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return created, newServiceError(opPreload, "judgement_insert_failed", err)
			}
			created++
		}

		remainingToPreload -= len(candidates)
	}

	return created, nil
}

// openItems builds the work-item view of the user's TO_JUDGE judgements,
// reading the pinned snapshots rather than the current versions.
func (e *Engine) openItems(tx *gorm.DB, userID string) ([]OpenItem, error) {
	var open []Judgement
	if err := tx.Where("user_id = ? AND status = ?", userID, StatusToJudge).
		Order("created_at ASC, judgement_id ASC").
		Find(&open).Error; err != nil {
		return nil, newServiceError(opPreload, "open_query_failed", err)
	}

	items := make([]OpenItem, 0, len(open))
	for _, row := range open {
		queryVersion, err := catalog.QueryVersionAt(tx, row.QueryID, row.QueryVersion)
		if err != nil {
			return nil, newServiceError(opPreload, "query_version_failed", err)
		}
		documentVersion, err := catalog.DocumentVersionAt(tx, row.DocumentID, row.DocumentVersion)
		if err != nil {
			return nil, newServiceError(opPreload, "document_version_failed", err)
		}
		parts, err := documentVersion.Parts()
		if err != nil {
			return nil, newServiceError(opPreload, "parts_decode_failed", err)
		}

		items = append(items, OpenItem{
			ID:                 row.ID,
			QueryText:          queryVersion.Text,
			DocAnnotationParts: parts,
			Rotate:             row.Rotate,
			Mode:               row.Mode,
		})
	}
	return items, nil
}

func (e *Engine) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation)}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	e.logger.Error("judgement engine error", attrs...)
}

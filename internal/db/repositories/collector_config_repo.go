package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devmind/datacollector/internal/models"
	gormModels "devmind/datacollector/internal/models/gorm"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runtimeWriteAttempts bounds the retries of a runtime_state write that lost a race with an edit
const runtimeWriteAttempts = 5

type CollectorConfigRepo struct {
	db *gorm.DB
}

func NewCollectorConfigRepo(db *gorm.DB) *CollectorConfigRepo {
	return &CollectorConfigRepo{db: db}
}

// WithTx returns a repo bound to an open transaction
func (r *CollectorConfigRepo) WithTx(tx *gorm.DB) *CollectorConfigRepo {
	return &CollectorConfigRepo{db: tx}
}

// GetByUUID fetches a config by its public identifier. Returns nil, nil when absent.
func (r *CollectorConfigRepo) GetByUUID(ctx context.Context, configUUID string) (*gormModels.CollectorConfig, error) {
	var config gormModels.CollectorConfig

	err := r.db.WithContext(ctx).
		Where("uuid = ?", configUUID).
		First(&config).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collector config: %w", err)
	}

	return &config, nil
}

// GetForOwner fetches a config only if it belongs to ownerID
func (r *CollectorConfigRepo) GetForOwner(ctx context.Context, ownerID, configUUID string) (*gormModels.CollectorConfig, error) {
	var config gormModels.CollectorConfig

	err := r.db.WithContext(ctx).
		Where("uuid = ? AND owner_id = ?", configUUID, ownerID).
		First(&config).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collector config: %w", err)
	}

	return &config, nil
}

// ListByOwner fetches all configs of an owner, newest first
func (r *CollectorConfigRepo) ListByOwner(ctx context.Context, ownerID string) ([]gormModels.CollectorConfig, error) {
	var configs []gormModels.CollectorConfig

	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&configs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list collector configs: %w", err)
	}

	return configs, nil
}

// ListEnabled fetches every enabled config. Used to build the schedule at startup.
func (r *CollectorConfigRepo) ListEnabled(ctx context.Context) ([]gormModels.CollectorConfig, error) {
	var configs []gormModels.CollectorConfig

	err := r.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Find(&configs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list enabled collector configs: %w", err)
	}

	return configs, nil
}

// Create inserts a new config. A second config for the same (owner, platform) yields ErrConfigExists.
func (r *CollectorConfigRepo) Create(ctx context.Context, config *gormModels.CollectorConfig) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&gormModels.CollectorConfig{}).
		Where("owner_id = ? AND platform = ?", config.OwnerID, config.Platform).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing config: %w", err)
	}
	if count > 0 {
		return ErrConfigExists
	}

	if err := r.db.WithContext(ctx).Create(config).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConfigExists
		}
		return fmt.Errorf("failed to create collector config: %w", err)
	}
	return nil
}

// UpdateWithVersion applies an HTTP edit if the stored version still equals expectedVersion.
// The stored runtime_state always wins over whatever value carries. On success the
// version is incremented by exactly one and the new version is returned.
func (r *CollectorConfigRepo) UpdateWithVersion(ctx context.Context, configID string, expectedVersion int, key string, value models.JSONB, isEnabled bool) (int, error) {
	newVersion := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current gormModels.CollectorConfig
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "value", "version").
			Where("id = ?", configID).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}

		merged := value.Clone()
		if rs, ok := current.Value["runtime_state"]; ok {
			merged["runtime_state"] = rs
		}

		result := tx.Model(&gormModels.CollectorConfig{}).
			Where("id = ? AND version = ?", configID, expectedVersion).
			Updates(map[string]interface{}{
				"key":        key,
				"value":      merged,
				"is_enabled": isEnabled,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		newVersion = expectedVersion + 1
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to update collector config: %w", err)
	}
	return newVersion, nil
}

// SetRuntimeTimestamps writes the given runtime_state keys without touching the version.
// Other runtime_state keys and the rest of the value are preserved. The row is read
// locked and written only while its version is unchanged, so an edit accepted in
// between is re-read instead of overwritten.
func (r *CollectorConfigRepo) SetRuntimeTimestamps(ctx context.Context, configID string, updates map[string]time.Time) error {
	for attempt := 0; attempt < runtimeWriteAttempts; attempt++ {
		var current gormModels.CollectorConfig
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "value", "version").
			Where("id = ?", configID).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read runtime state: %w", err)
		}

		result := r.db.WithContext(ctx).
			Model(&gormModels.CollectorConfig{}).
			Where("id = ? AND version = ?", configID, current.Version).
			UpdateColumn("value", withRuntimeState(current.Value, updates))
		if result.Error != nil {
			return fmt.Errorf("failed to write runtime state: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("failed to write runtime state: %w", ErrVersionConflict)
}

func withRuntimeState(current models.JSONB, updates map[string]time.Time) models.JSONB {
	value := current.Clone()
	state, _ := value["runtime_state"].(map[string]interface{})
	next := make(map[string]interface{}, len(state)+len(updates))
	for k, v := range state {
		next[k] = v
	}
	for k, t := range updates {
		next[k] = models.FormatTimestamp(t)
	}
	value["runtime_state"] = next
	return value
}

// Delete removes a config
func (r *CollectorConfigRepo) Delete(ctx context.Context, configID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", configID).
		Delete(&gormModels.CollectorConfig{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete collector config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

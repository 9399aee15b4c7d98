package ledger

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"reg-mail-forwarder-go/internal/model"
)

// GormOpener opens database backed stores partitioned by the run's ledger scope.
type GormOpener struct {
	DB *gorm.DB
}

// Open returns a store for the run's ledger scope
func (o GormOpener) Open(cfg *model.RunConfig) (Store, error) {
	if cfg.LedgerScope == "" {
		return nil, fmt.Errorf("%w: ledger scope is required", model.ErrConfig)
	}
	return NewGormStore(o.DB, cfg.LedgerScope), nil
}

// GormStore keeps the ledger in the forwarded_registrations table and the
// failure log in forward_failures.
type GormStore struct {
	db    *gorm.DB
	scope string
}

// NewGormStore creates a store over db for one ledger scope
func NewGormStore(db *gorm.DB, scope string) *GormStore {
	return &GormStore{db: db, scope: scope}
}

// AlreadyForwarded checks if the key has already been forwarded in this scope
func (s *GormStore) AlreadyForwarded(key string) (bool, error) {
	var count int64
	result := s.db.Model(&model.ForwardedRegistration{}).
		Where("scope = ? AND registration_number = ?", s.scope, key).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("database error checking ledger: %w", result.Error)
	}
	return count > 0, nil
}

// MarkForwarded records the key as forwarded
func (s *GormStore) MarkForwarded(key string) error {
	row := model.ForwardedRegistration{
		Scope:              s.scope,
		RegistrationNumber: key,
		ForwardedAt:        time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to mark %s as forwarded: %w", key, err)
	}
	return nil
}

// Record logs a failed forward
func (s *GormStore) Record(entry model.FailureEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	row := model.ForwardFailure{
		Scope:              s.scope,
		MessageUID:         entry.MessageUID,
		RegistrationNumber: entry.RegistrationNumber,
		Reason:             entry.Reason,
		CreatedAt:          at,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to log forward failure: %w", err)
	}
	return nil
}

// Close leaves the shared connection pool open
func (s *GormStore) Close() error {
	return nil
}

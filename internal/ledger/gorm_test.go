package ledger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"reg-mail-forwarder-go/internal/model"
)

// Set LEDGER_TEST_MYSQL_DSN to run against a scratch database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_MYSQL_DSN not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ForwardedRegistration{}, &model.ForwardFailure{}))
	t.Cleanup(func() {
		db.Where("scope = ?", t.Name()).Delete(&model.ForwardedRegistration{})
		db.Where("scope = ?", t.Name()).Delete(&model.ForwardFailure{})
	})
	return db
}

func TestGormStore(t *testing.T) {
	db := openTestDB(t)

	store, err := GormOpener{DB: db}.Open(&model.RunConfig{LedgerScope: t.Name()})
	require.NoError(t, err)

	ok, err := store.AlreadyForwarded("ABC123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.MarkForwarded("ABC123"))
	ok, err = store.AlreadyForwarded("ABC123")
	require.NoError(t, err)
	assert.True(t, ok)

	other := NewGormStore(db, t.Name()+"-other")
	ok, err = other.AlreadyForwarded("ABC123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Record(model.FailureEntry{MessageUID: 7, RegistrationNumber: "ZZZ1", Reason: "not found in table"}))

	var failures []model.ForwardFailure
	require.NoError(t, db.Where("scope = ?", t.Name()).Find(&failures).Error)
	require.Len(t, failures, 1)
	assert.Equal(t, "not found in table", failures[0].Reason)
}

func TestGormOpenerRequiresScope(t *testing.T) {
	_, err := GormOpener{}.Open(&model.RunConfig{})
	assert.ErrorIs(t, err, model.ErrConfig)
}

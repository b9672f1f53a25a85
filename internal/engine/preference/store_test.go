// internal/engine/preference/store_test.go
package preference

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

func newTestStore(t *testing.T, cacheEnabled bool) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	cfg.CacheEnabled = cacheEnabled

	store := NewStore(Deps{
		DB:     db,
		Redis:  rdb,
		Logger: logger.NewZapAdapter(zaptest.NewLogger(t)),
	}, cfg)

	return store, mock
}

func prefsRow(t *testing.T, prefs *models.UserPreferences) *sqlmock.Rows {
	doc, err := json.Marshal(prefs)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"prefs"}).AddRow(doc)
}

func TestStore_GetOrCreate_Existing(t *testing.T) {
	store, mock := newTestStore(t, false)

	existing := DefaultPreferences("user-1")
	existing.Channels.SMS.Enabled = true
	existing.Channels.SMS.Phone = "+15551234567"

	mock.ExpectQuery(`SELECT prefs FROM user_preferences`).
		WithArgs("user-1").
		WillReturnRows(prefsRow(t, existing))

	prefs, err := store.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", prefs.UserID)
	assert.True(t, prefs.Channels.SMS.Enabled)
	assert.Equal(t, "+15551234567", prefs.Channels.SMS.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetOrCreate_CreatesDefaults(t *testing.T) {
	store, mock := newTestStore(t, false)

	mock.ExpectQuery(`SELECT prefs FROM user_preferences`).
		WithArgs("user-new").
		WillReturnRows(sqlmock.NewRows([]string{"prefs"}))
	mock.ExpectExec(`INSERT INTO user_preferences`).
		WithArgs("user-new", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	prefs, err := store.GetOrCreate(context.Background(), "user-new")
	require.NoError(t, err)

	assert.True(t, prefs.Channels.Email.Enabled)
	assert.False(t, prefs.Channels.SMS.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetOrCreate_EmptyUserID(t *testing.T) {
	store, _ := newTestStore(t, false)

	_, err := store.GetOrCreate(context.Background(), "")
	assert.Error(t, err)
}

func TestStore_GetOrCreate_CacheHit(t *testing.T) {
	store, mock := newTestStore(t, true)

	existing := DefaultPreferences("user-1")
	mock.ExpectQuery(`SELECT prefs FROM user_preferences`).
		WithArgs("user-1").
		WillReturnRows(prefsRow(t, existing))

	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	// second call served from redis
	prefs, err := store.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", prefs.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordUnsubscribe_Category(t *testing.T) {
	store, mock := newTestStore(t, false)

	existing := DefaultPreferences("user-1")
	mock.ExpectQuery(`SELECT prefs FROM user_preferences`).
		WithArgs("user-1").
		WillReturnRows(prefsRow(t, existing))
	mock.ExpectExec(`UPDATE user_preferences SET prefs`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordUnsubscribe(context.Background(), "user-1", models.CategoryPromotional, "too many emails")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordUnsubscribe_Global(t *testing.T) {
	store, mock := newTestStore(t, false)

	existing := DefaultPreferences("user-1")
	mock.ExpectQuery(`SELECT prefs FROM user_preferences`).
		WithArgs("user-1").
		WillReturnRows(prefsRow(t, existing))
	mock.ExpectExec(`UPDATE user_preferences SET prefs`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordUnsubscribe(context.Background(), "user-1", "", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// internal/engine/recipient/resolver_test.go
package recipient

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Lookup(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestResolver(t *testing.T, dir Directory) *Resolver {
	return NewResolver(dir, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func basePrefs() *models.UserPreferences {
	return &models.UserPreferences{
		UserID: "user-1",
		Channels: models.ChannelPrefs{
			Email: models.EmailChannelPrefs{Enabled: true},
			SMS:   models.SMSChannelPrefs{Enabled: true},
			Push:  models.PushChannelPrefs{Enabled: true},
			InApp: models.InAppChannelPrefs{Enabled: true},
		},
	}
}

func TestResolve_EmailFromPreferences(t *testing.T) {
	dir := new(mockDirectory)
	resolver := newTestResolver(t, dir)

	prefs := basePrefs()
	prefs.Channels.Email.Address = "ann@example.com"

	rec, err := resolver.Resolve(context.Background(), "user-1", models.ChannelEmail, prefs)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", rec.Email)
	dir.AssertNotCalled(t, "Lookup")
}

func TestResolve_EmailIdentityFallback(t *testing.T) {
	dir := new(mockDirectory)
	dir.On("Lookup", mock.Anything, "user-1").
		Return(&models.User{ID: "user-1", Name: "Ann", Email: "ann@fallback.com"}, nil)
	resolver := newTestResolver(t, dir)

	rec, err := resolver.Resolve(context.Background(), "user-1", models.ChannelEmail, basePrefs())
	require.NoError(t, err)
	assert.Equal(t, "ann@fallback.com", rec.Email)
	dir.AssertExpectations(t)
}

func TestResolve_EmailMissingEverywhere(t *testing.T) {
	dir := new(mockDirectory)
	dir.On("Lookup", mock.Anything, "user-1").Return(&models.User{ID: "user-1"}, nil)
	resolver := newTestResolver(t, dir)

	_, err := resolver.Resolve(context.Background(), "user-1", models.ChannelEmail, basePrefs())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecipientMissing))
}

func TestResolve_SMSFromPreferences(t *testing.T) {
	dir := new(mockDirectory)
	resolver := newTestResolver(t, dir)

	prefs := basePrefs()
	prefs.Channels.SMS.Phone = "+15551234567"

	rec, err := resolver.Resolve(context.Background(), "user-1", models.ChannelSMS, prefs)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", rec.Phone)
}

func TestResolve_SMSNoPhoneOnFile(t *testing.T) {
	dir := new(mockDirectory)
	dir.On("Lookup", mock.Anything, "user-1").Return(&models.User{ID: "user-1"}, nil)
	resolver := newTestResolver(t, dir)

	_, err := resolver.Resolve(context.Background(), "user-1", models.ChannelSMS, basePrefs())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecipientMissing))
}

func TestResolve_PushActiveTokensOnly(t *testing.T) {
	resolver := newTestResolver(t, nil)

	prefs := basePrefs()
	prefs.Channels.Push.Devices = []models.DeviceToken{
		{Token: "tok-active-1", Platform: "ios", Active: true},
		{Token: "tok-inactive", Platform: "android", Active: false},
		{Token: "tok-active-2", Platform: "web", Active: true},
	}

	rec, err := resolver.Resolve(context.Background(), "user-1", models.ChannelPush, prefs)
	require.NoError(t, err)
	require.Len(t, rec.Devices, 2)
	assert.Equal(t, "tok-active-1", rec.Devices[0].Token)
	assert.Equal(t, "ios", rec.Devices[0].Platform)
	assert.Equal(t, "tok-active-2", rec.Devices[1].Token)
	assert.Equal(t, "web", rec.Devices[1].Platform)
}

func TestResolve_PushNoActiveTokens(t *testing.T) {
	resolver := newTestResolver(t, nil)

	_, err := resolver.Resolve(context.Background(), "user-1", models.ChannelPush, basePrefs())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecipientMissing))
}

func TestResolve_InApp(t *testing.T) {
	resolver := newTestResolver(t, nil)

	rec, err := resolver.Resolve(context.Background(), "user-1", models.ChannelInApp, basePrefs())
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Empty(t, rec.Email)
	assert.Empty(t, rec.Phone)
}

func TestPostgresDirectory_Lookup(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone"}).
		AddRow("user-1", "Ann", "ann@example.com", "+15551234567")
	mockDB.ExpectQuery(`SELECT id, name, email, phone FROM users`).
		WithArgs("user-1").
		WillReturnRows(rows)

	dir := NewPostgresDirectory(db)
	user, err := dir.Lookup(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresDirectory_LookupUnknownUser(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectQuery(`SELECT id, name, email, phone FROM users`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone"}))

	dir := NewPostgresDirectory(db)
	user, err := dir.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
}

// internal/engine/recipient/resolver.go
package recipient

import (
	"context"
	"database/sql"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// Directory looks up user identity in the external user store. The engine
// only needs name, email and phone as fallback destinations.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*models.User, error)
}

// PostgresDirectory reads the users table maintained by the account system.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	var email, phone sql.NullString

	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Name, &email, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}

	user.Email = email.String
	user.Phone = phone.String
	return &user, nil
}

// Resolver derives the concrete destination for a channel from preferences,
// falling back to the user directory for email and phone.
type Resolver struct {
	directory Directory
	logger    logger.Logger
}

func NewResolver(directory Directory, log logger.Logger) *Resolver {
	return &Resolver{directory: directory, logger: log}
}

// Resolve returns the recipient for the given channel. A channel whose
// required destination is absent yields a RECIPIENT_MISSING error and the
// submission is rejected before any record is created.
func (r *Resolver) Resolve(ctx context.Context, userID string, channel models.Channel, prefs *models.UserPreferences) (*models.Recipient, error) {
	switch channel {
	case models.ChannelEmail:
		return r.resolveEmail(ctx, userID, prefs)
	case models.ChannelSMS:
		return r.resolveSMS(ctx, userID, prefs)
	case models.ChannelPush:
		return r.resolvePush(userID, prefs)
	case models.ChannelInApp:
		return &models.Recipient{UserID: userID}, nil
	}
	return nil, errors.NewValidationError("unsupported channel: " + string(channel))
}

func (r *Resolver) resolveEmail(ctx context.Context, userID string, prefs *models.UserPreferences) (*models.Recipient, error) {
	if addr := prefs.Channels.Email.Address; addr != "" {
		return &models.Recipient{UserID: userID, Email: addr}, nil
	}

	user, err := r.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.Email != "" {
		return &models.Recipient{UserID: userID, Email: user.Email}, nil
	}
	return nil, errors.NewRecipientMissingError(string(models.ChannelEmail), userID)
}

func (r *Resolver) resolveSMS(ctx context.Context, userID string, prefs *models.UserPreferences) (*models.Recipient, error) {
	if phone := prefs.Channels.SMS.Phone; phone != "" {
		return &models.Recipient{UserID: userID, Phone: phone}, nil
	}

	user, err := r.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.Phone != "" {
		return &models.Recipient{UserID: userID, Phone: user.Phone}, nil
	}
	return nil, errors.NewRecipientMissingError(string(models.ChannelSMS), userID)
}

func (r *Resolver) resolvePush(userID string, prefs *models.UserPreferences) (*models.Recipient, error) {
	devices := prefs.ActiveDevices()
	if len(devices) == 0 {
		return nil, errors.NewRecipientMissingError(string(models.ChannelPush), userID)
	}
	return &models.Recipient{UserID: userID, Devices: devices}, nil
}

func (r *Resolver) lookup(ctx context.Context, userID string) (*models.User, error) {
	if r.directory == nil {
		return nil, nil
	}
	user, err := r.directory.Lookup(ctx, userID)
	if err != nil {
		r.logger.Warn("user directory lookup failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, err
	}
	return user, nil
}

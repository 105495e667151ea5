package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aarthik/internal/core"
)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = fmt.Errorf("%w: email already registered", core.ErrInvalidArgument)

// ProfileKey identifies one profile of one user.
type ProfileKey struct {
	UserID    int64
	ProfileID int64
}

// CreateUser registers a user together with the default profile.
// The default profile takes id 1 and the profile counter starts at 2.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, name string, currency core.Currency, now time.Time) (core.User, error) {
	var user core.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, email).Scan(&exists)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check email: %w", err)
		}

		ts := formatTime(now)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, name, currency, active_profile_id, next_profile_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			email, name, string(currency), core.DefaultProfileID, core.DefaultProfileID+1, ts)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, profile_id, name, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, core.DefaultProfileID, core.DefaultProfileName, ts, ts); err != nil {
			return fmt.Errorf("insert default profile: %w", err)
		}

		user = core.User{
			ID:              id,
			Email:           email,
			Name:            name,
			Currency:        currency,
			ActiveProfileID: core.DefaultProfileID,
			CreatedAt:       now.UTC(),
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "currency", user.Currency)
	return user, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

// SetCurrency changes the display currency of a user.
func (r *SQLiteRepository) SetCurrency(ctx context.Context, userID int64, currency core.Currency) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET currency = ? WHERE user_id = ?`, string(currency), userID)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", core.ErrNotFound)
	}
	return nil
}

// CreateProfile allocates the next profile id from the user's counter and
// inserts the profile in the same transaction.
func (r *SQLiteRepository) CreateProfile(ctx context.Context, userID int64, name string, now time.Time) (core.Profile, error) {
	var profile core.Profile
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`UPDATE users SET next_profile_id = next_profile_id + 1
			 WHERE user_id = ?
			 RETURNING next_profile_id - 1`, userID).Scan(&id)
		if err != nil {
			return notFound(err, "user")
		}

		ts := formatTime(now)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, profile_id, name, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`, userID, id, name, ts, ts); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		profile = core.Profile{
			UserID:    userID,
			ProfileID: id,
			Name:      name,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		}
		return nil
	})
	if err != nil {
		return core.Profile{}, err
	}

	slog.InfoContext(ctx, "Profile created", "user_id", userID, "profile_id", profile.ProfileID)
	return profile, nil
}

// SetActiveProfile switches the active profile after checking the user owns it.
func (r *SQLiteRepository) SetActiveProfile(ctx context.Context, userID, profileID int64) (core.Profile, error) {
	var profile core.Profile
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := scanProfile(tx.QueryRowContext(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE user_id = ? AND profile_id = ?`,
			userID, profileID))
		if err != nil {
			return notFound(err, "profile")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_profile_id = ? WHERE user_id = ?`, profileID, userID); err != nil {
			return fmt.Errorf("update active profile: %w", err)
		}
		profile = p
		return nil
	})
	return profile, err
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID, profileID int64) (core.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ? AND profile_id = ?`,
		userID, profileID))
	if err != nil {
		return core.Profile{}, notFound(err, "profile")
	}
	return p, nil
}

// ListProfiles returns the profiles of a user ordered by id.
func (r *SQLiteRepository) ListProfiles(ctx context.Context, userID int64) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ? ORDER BY profile_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []core.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProfilesWithRecurring returns every profile holding at least one recurring expense.
func (r *SQLiteRepository) ListProfilesWithRecurring(ctx context.Context) ([]ProfileKey, error) {
	keys, err := r.profileKeys(ctx,
		`SELECT DISTINCT user_id, profile_id FROM transactions
		 WHERE recurrence IS NOT NULL
		 ORDER BY user_id, profile_id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring profiles: %w", err)
	}
	return keys, nil
}

// ListProfileKeys returns every profile of every user.
func (r *SQLiteRepository) ListProfileKeys(ctx context.Context) ([]ProfileKey, error) {
	keys, err := r.profileKeys(ctx,
		`SELECT user_id, profile_id FROM profiles ORDER BY user_id, profile_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return keys, nil
}

func (r *SQLiteRepository) profileKeys(ctx context.Context, query string) ([]ProfileKey, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileKey
	for rows.Next() {
		var k ProfileKey
		if err := rows.Scan(&k.UserID, &k.ProfileID); err != nil {
			return nil, fmt.Errorf("scan profile key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

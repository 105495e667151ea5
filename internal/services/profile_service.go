package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"aarthik/internal/core"
	applog "aarthik/internal/log"
	"aarthik/internal/storage"
)

// NewUser is the signup record handed over by the identity provider.
type NewUser struct {
	Email    string
	Name     string
	Currency string
}

// SwitchResult is returned by SwitchProfile.
type SwitchResult struct {
	Profile core.Profile
	Message string
}

// ProfileService manages users' profiles and which one is active.
type ProfileService struct {
	store *storage.SQLiteRepository
	now   func() time.Time
}

func NewProfileService(store *storage.SQLiteRepository) *ProfileService {
	return &ProfileService{store: store, now: time.Now}
}

// RegisterUser creates the user with the default profile active.
func (s *ProfileService) RegisterUser(ctx context.Context, in NewUser) (core.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return core.User{}, fmt.Errorf("%w: invalid email", core.ErrInvalidArgument)
	}
	currency, err := core.ParseCurrency(in.Currency)
	if err != nil {
		return core.User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if len(name) > 100 {
		return core.User{}, fmt.Errorf("%w: name too long (max 100 characters)", core.ErrInvalidArgument)
	}

	u, err := s.store.CreateUser(ctx, strings.ToLower(addr.Address), name, currency, s.now())
	if err != nil {
		return core.User{}, fmt.Errorf("register user: %w", err)
	}
	return u, nil
}

// SetCurrency changes the currency used when rendering amounts for the user.
func (s *ProfileService) SetCurrency(ctx context.Context, userID int64, currency string) (core.Currency, error) {
	c, err := core.ParseCurrency(currency)
	if err != nil {
		return "", err
	}
	if err := s.store.SetCurrency(ctx, userID, c); err != nil {
		return "", fmt.Errorf("set currency: %w", err)
	}
	return c, nil
}

// CreateProfile adds a profile for the user with the next free id.
func (s *ProfileService) CreateProfile(ctx context.Context, userID int64, name string) (core.Profile, error) {
	name, err := core.ValidateProfileName(name)
	if err != nil {
		return core.Profile{}, err
	}
	p, err := s.store.CreateProfile(ctx, userID, name, s.now())
	if err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// SwitchProfile makes profileID the user's active profile. A profile the user
// does not own is core.ErrNotFound and leaves the active profile unchanged.
func (s *ProfileService) SwitchProfile(ctx context.Context, userID, profileID int64) (SwitchResult, error) {
	p, err := s.store.SetActiveProfile(ctx, userID, profileID)
	if err != nil {
		return SwitchResult{}, fmt.Errorf("switch profile: %w", err)
	}

	slog.InfoContext(ctx, "Active profile switched",
		applog.NewFields().WithOperation(applog.OpSwitch).WithIdentity(userID, profileID).ToSlice()...)
	return SwitchResult{
		Profile: p,
		Message: "Switched to profile " + p.Name,
	}, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context, userID int64) ([]core.Profile, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListProfiles(ctx, userID)
}

// ActiveProfile returns the user's currently active profile.
func (s *ProfileService) ActiveProfile(ctx context.Context, userID int64) (core.Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.Profile{}, err
	}
	return s.store.GetProfile(ctx, userID, u.ActiveProfileID)
}

// Identity resolves the caller to the user and their active profile.
func (s *ProfileService) Identity(ctx context.Context, userID int64) (Identity, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: u.ID, ProfileID: u.ActiveProfileID}, nil
}

func (s *ProfileService) User(ctx context.Context, userID int64) (core.User, error) {
	return s.store.GetUser(ctx, userID)
}

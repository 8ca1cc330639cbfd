package repository

import (
	"context"
	"time"

	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

// Repository is the identity store. Lookups by id report
// commonerrors.ErrUserNotFound for unknown users.
type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByName(ctx context.Context, name string) (domain.User, error)
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	List(ctx context.Context) ([]domain.UserWithApp, error)
	Delete(ctx context.Context, id domain.ID) error

	// SetLogged is idempotent and silently updates nothing for an unknown id.
	SetLogged(ctx context.Context, id domain.ID, logged bool) error
	SetBlocked(ctx context.Context, id domain.ID, blocked bool) error
	// UpdateExpiration reads the stored date, applies fn and writes the
	// result back inside one transaction.
	UpdateExpiration(ctx context.Context, id domain.ID, fn func(time.Time) time.Time) (time.Time, error)

	UpsertRunningApp(ctx context.Context, app domain.RunningApp) error
	FindRunningApp(ctx context.Context, id domain.ID) (domain.RunningApp, error)
	// DeleteRunningApps removes every slot held by id; none is not an error.
	DeleteRunningApps(ctx context.Context, id domain.ID) error

	// ResetPresence clears isLogged and every running app. Used at startup
	// when the in-memory presence registry is known to be empty.
	ResetPresence(ctx context.Context) error

	Ping(ctx context.Context) error
	Close()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlibekovAA/devicehub/internal/common/constants"
	"github.com/AlibekovAA/devicehub/internal/common/db"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/common/resilience"
	devicews "github.com/AlibekovAA/devicehub/internal/device/websocket"
	"github.com/AlibekovAA/devicehub/internal/observability/metrics"
	"github.com/AlibekovAA/devicehub/internal/presence"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

type ExpireUnit string

const (
	UnitDay   ExpireUnit = "day"
	UnitMonth ExpireUnit = "month"
)

// CommandStore is the part of the identity store operator commands touch.
type CommandStore interface {
	List(ctx context.Context) ([]domain.UserWithApp, error)
	Delete(ctx context.Context, id domain.ID) error
	SetBlocked(ctx context.Context, id domain.ID, blocked bool) error
	UpdateExpiration(ctx context.Context, id domain.ID, fn func(time.Time) time.Time) (time.Time, error)
}

type PresenceLookup interface {
	Lookup(guid string) (presence.Conn, bool)
}

type Dispatcher struct {
	store       CommandStore
	presence    PresenceLookup
	breaker     *resilience.CircuitBreaker
	pushTimeout time.Duration
	log         *logger.Logger
}

type Config struct {
	Breaker     *resilience.CircuitBreaker
	PushTimeout time.Duration
}

func NewDispatcher(store CommandStore, lookup PresenceLookup, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		presence:    lookup,
		breaker:     cfg.Breaker,
		pushTimeout: cfg.PushTimeout,
		log:         log,
	}
}

func (d *Dispatcher) storeCall(ctx context.Context, fn func(context.Context) error) error {
	var err error
	if d.breaker != nil {
		err = d.breaker.Call(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		return nil
	}
	if _, ok := commonerrors.AsDomainError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return commonerrors.ErrStoreUnavailable.WithCause(err)
}

func record(command string, err error) {
	result := "success"
	if err != nil {
		result = "error"
		if de, ok := commonerrors.AsDomainError(err); ok {
			result = string(de.Category())
		}
	}
	metrics.CommandsTotal.WithLabelValues(command, result).Inc()
}

// push delivers a reboot to the live connection of guid, if any. Delivery
// failures are logged; the device is treated as gone.
func (d *Dispatcher) push(ctx context.Context, guid string) bool {
	conn, ok := d.presence.Lookup(guid)
	if !ok {
		return false
	}

	pushCtx := ctx
	if d.pushTimeout > 0 {
		var cancel context.CancelFunc
		pushCtx, cancel = context.WithTimeout(ctx, d.pushTimeout)
		defer cancel()
	}

	if err := conn.Send(pushCtx, devicews.RebootEvent()); err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"user_id": guid,
			"conn_id": conn.ID(),
			"action":  "reboot_push_failed",
		}).Warnf("reboot push failed: %v", err)
		return false
	}
	return true
}

// Reboot pushes a reboot to the device of guid. An offline device is not an
// error.
func (d *Dispatcher) Reboot(ctx context.Context, guid string) error {
	delivered := d.push(ctx, guid)
	record("reboot", nil)

	d.log.WithFields(ctx, logger.Fields{
		"user_id":   guid,
		"delivered": delivered,
		"action":    "reboot",
	}).Info("reboot command")
	return nil
}

// SetBlocked persists the flag before anything reaches the device. Blocking
// an online user also pushes a reboot.
func (d *Dispatcher) SetBlocked(ctx context.Context, guid string, blocked bool) error {
	err := d.storeCall(ctx, func(ctx context.Context) error {
		return d.store.SetBlocked(ctx, domain.ID(guid), blocked)
	})
	record("set_blocked", err)
	if err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"user_id": guid,
			"blocked": blocked,
			"action":  "set_blocked_failed",
		}).Warnf("set blocked failed: %v", err)
		return err
	}

	delivered := false
	if blocked {
		delivered = d.push(ctx, guid)
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id":     guid,
		"blocked":     blocked,
		"reboot_sent": delivered,
		"action":      "set_blocked",
	}).Info("user block flag updated")
	return nil
}

// ExtendExpiration adds amount days or months to the stored expiration date
// and returns the new date. It is additive: repeating a call extends again.
func (d *Dispatcher) ExtendExpiration(ctx context.Context, guid string, amount int, unit ExpireUnit) (time.Time, error) {
	var years, months, days int
	switch unit {
	case UnitDay:
		if amount > constants.MaxExtendDays {
			return time.Time{}, commonerrors.ErrInvalidExpireAmount.WithCause(fmt.Errorf("at most %d days", constants.MaxExtendDays))
		}
		days = amount
	case UnitMonth:
		if amount > constants.MaxExtendMonths {
			return time.Time{}, commonerrors.ErrInvalidExpireAmount.WithCause(fmt.Errorf("at most %d months", constants.MaxExtendMonths))
		}
		months = amount
	default:
		return time.Time{}, commonerrors.ErrInvalidExpireUnit.WithCause(fmt.Errorf("unit %q", unit))
	}
	if amount <= 0 {
		return time.Time{}, commonerrors.ErrInvalidExpireAmount
	}

	var updated time.Time
	err := d.storeCall(ctx, func(ctx context.Context) error {
		return db.RetryWithBackoff(ctx, d.log, db.DefaultRetryConfig, func() error {
			var err error
			updated, err = d.store.UpdateExpiration(ctx, domain.ID(guid), func(current time.Time) time.Time {
				return current.AddDate(years, months, days)
			})
			return err
		})
	})
	record("extend_expiration", err)
	if err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"user_id": guid,
			"amount":  amount,
			"unit":    string(unit),
			"action":  "extend_expiration_failed",
		}).Warnf("extend expiration failed: %v", err)
		return time.Time{}, err
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id":         guid,
		"amount":          amount,
		"unit":            string(unit),
		"expiration_date": updated.Format(time.RFC3339),
		"action":          "extend_expiration",
	}).Info("expiration extended")
	return updated, nil
}

// DeleteUser purges the user and its running app. A live connection is left
// alone; its teardown finds nothing to clear.
func (d *Dispatcher) DeleteUser(ctx context.Context, guid string) error {
	err := d.storeCall(ctx, func(ctx context.Context) error {
		return d.store.Delete(ctx, domain.ID(guid))
	})
	record("delete_user", err)
	if err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"user_id": guid,
			"action":  "delete_user_failed",
		}).Warnf("delete user failed: %v", err)
		return err
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id": guid,
		"action":  "delete_user",
	}).Info("user deleted")
	return nil
}

func (d *Dispatcher) ListUsers(ctx context.Context) ([]domain.UserWithApp, error) {
	var users []domain.UserWithApp
	err := d.storeCall(ctx, func(ctx context.Context) error {
		var err error
		users, err = d.store.List(ctx)
		return err
	})
	record("list_users", err)
	if err != nil {
		return nil, err
	}
	return users, nil
}

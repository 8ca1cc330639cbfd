package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AlibekovAA/devicehub/internal/common/db"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

const userColumnsSQLite = `id, name, password_hash, role, is_blocked, is_logged, expiration_date, created_at`

// SQLiteRepository stores timestamps as RFC 3339 text in UTC so that
// sub-second precision survives a round trip.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens dbPath (":memory:" works for tests), applies pragmas and
// runs the embedded migrations.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; also keeps a :memory: database alive on a single connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := migrate(ctx, sqlDB, "sqlite3", "migrations/sqlite"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLiteRepository{db: sqlDB}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserSQLite(row rowScanner, extra ...any) (domain.User, error) {
	var (
		user       domain.User
		id         string
		role       string
		expiration string
		createdAt  string
	)
	dest := append([]any{
		&id,
		&user.Name,
		&user.PasswordHash,
		&role,
		&user.IsBlocked,
		&user.IsLogged,
		&expiration,
		&createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}

	var err error
	user.ID = domain.ID(id)
	user.Role = domain.Role(role)
	if user.ExpirationDate, err = parseTime(expiration); err != nil {
		return domain.User{}, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO users (id, name, password_hash, role, is_blocked, is_logged, expiration_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(user.ID),
		user.Name,
		user.PasswordHash,
		string(user.Role),
		user.IsBlocked,
		user.IsLogged,
		formatTime(user.ExpirationDate),
		formatTime(user.CreatedAt),
	)
	if db.IsUniqueViolation(err) {
		db.HandleExecError(db.DriverSQLite, nil, "create user", start)
		return commonerrors.ErrNameTaken
	}
	return db.HandleExecError(db.DriverSQLite, err, "create user", start)
}

func (r *SQLiteRepository) FindByName(ctx context.Context, name string) (domain.User, error) {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumnsSQLite+` FROM users WHERE name = ?`, name)

	user, err := scanUserSQLite(row)
	if err := db.HandleQueryError(db.DriverSQLite, err, commonerrors.ErrUserNotFound, "find user by name", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumnsSQLite+` FROM users WHERE id = ?`, string(id))

	user, err := scanUserSQLite(row)
	if err := db.HandleQueryError(db.DriverSQLite, err, commonerrors.ErrUserNotFound, "find user by id", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]domain.UserWithApp, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT u.id, u.name, u.password_hash, u.role, u.is_blocked, u.is_logged,
		        u.expiration_date, u.created_at, a.name, a.start_at
		 FROM users u
		 LEFT JOIN running_apps a ON a.user_id = u.id
		 ORDER BY u.created_at ASC, u.name ASC`,
	)
	if err != nil {
		return nil, db.HandleQueryError(db.DriverSQLite, err, nil, "list users", start)
	}
	defer rows.Close()

	users := make([]domain.UserWithApp, 0)
	for rows.Next() {
		var appName, appStart sql.NullString
		user, err := scanUserSQLite(rows, &appName, &appStart)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		entry := domain.UserWithApp{User: user}
		if appName.Valid && appStart.Valid {
			startAt, err := parseTime(appStart.String)
			if err != nil {
				return nil, err
			}
			entry.App = &domain.RunningApp{UserID: user.ID, Name: appName.String, StartAt: startAt}
		}
		users = append(users, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(db.DriverSQLite, err, nil, "list users", start)
	}

	db.HandleQueryError(db.DriverSQLite, nil, nil, "list users", start)
	return users, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id domain.ID) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, string(id))
	if err := db.HandleExecError(db.DriverSQLite, err, "delete user", start); err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return commonerrors.ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetLogged(ctx context.Context, id domain.ID, logged bool) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_logged = ? WHERE id = ?`, logged, string(id))
	return db.HandleExecError(db.DriverSQLite, err, "set user logged", start)
}

func (r *SQLiteRepository) SetBlocked(ctx context.Context, id domain.ID, blocked bool) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_blocked = ? WHERE id = ?`, blocked, string(id))
	if err := db.HandleExecError(db.DriverSQLite, err, "set user blocked", start); err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) UpdateExpiration(ctx context.Context, id domain.ID, fn func(time.Time) time.Time) (time.Time, error) {
	start := time.Now()
	updated, err := r.updateExpirationTx(ctx, id, fn)
	if err := db.HandleQueryError(db.DriverSQLite, err, commonerrors.ErrUserNotFound, "update user expiration", start); err != nil {
		return time.Time{}, err
	}
	return updated, nil
}

func (r *SQLiteRepository) updateExpirationTx(ctx context.Context, id domain.ID, fn func(time.Time) time.Time) (time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	if err := tx.QueryRowContext(ctx, `SELECT expiration_date FROM users WHERE id = ?`, string(id)).Scan(&stored); err != nil {
		return time.Time{}, err
	}

	current, err := parseTime(stored)
	if err != nil {
		return time.Time{}, err
	}

	updated := fn(current).UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE users SET expiration_date = ? WHERE id = ?`, formatTime(updated), string(id)); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return updated, nil
}

func (r *SQLiteRepository) UpsertRunningApp(ctx context.Context, app domain.RunningApp) error {
	start := time.Now()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO running_apps (user_id, name, start_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET name = excluded.name, start_at = excluded.start_at`,
		string(app.UserID),
		app.Name,
		formatTime(app.StartAt),
	)
	return db.HandleExecError(db.DriverSQLite, err, "upsert running app", start)
}

func (r *SQLiteRepository) FindRunningApp(ctx context.Context, id domain.ID) (domain.RunningApp, error) {
	start := time.Now()
	var name, startAt string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT name, start_at FROM running_apps WHERE user_id = ?`,
		string(id),
	).Scan(&name, &startAt)
	if err := db.HandleQueryError(db.DriverSQLite, err, ErrRunningAppNotFound, "find running app", start); err != nil {
		return domain.RunningApp{}, err
	}

	parsed, err := parseTime(startAt)
	if err != nil {
		return domain.RunningApp{}, err
	}
	return domain.RunningApp{UserID: id, Name: name, StartAt: parsed}, nil
}

func (r *SQLiteRepository) DeleteRunningApps(ctx context.Context, id domain.ID) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM running_apps WHERE user_id = ?`, string(id))
	return db.HandleExecError(db.DriverSQLite, err, "delete running apps", start)
}

func (r *SQLiteRepository) ResetPresence(ctx context.Context) error {
	start := time.Now()
	err := r.resetPresenceTx(ctx)
	return db.HandleExecError(db.DriverSQLite, err, "reset presence", start)
}

func (r *SQLiteRepository) resetPresenceTx(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET is_logged = 0 WHERE is_logged = 1`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM running_apps`); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}

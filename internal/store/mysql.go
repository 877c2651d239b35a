package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/harentsoaR/account-api/internal/models"
)

const mysqlDuplicateEntry = 1062

const (
	queryExistsByEmailOrCIN = `SELECT COUNT(*) FROM users WHERE email = ? OR cin = ?`
	queryEmailTakenByOther  = `SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`
	queryInsertUser         = `INSERT INTO users (firstName, lastName, cin, email, phoneNumber, password) VALUES (?, ?, ?, ?, ?, ?)`
	querySelectByEmail      = `SELECT id, firstName, lastName, cin, email, phoneNumber, password FROM users WHERE email = ?`
	querySelectByID         = `SELECT id, firstName, lastName, cin, email, phoneNumber, password FROM users WHERE id = ?`
	queryUpdateUser         = `UPDATE users SET firstName = ?, lastName = ?, email = ?, phoneNumber = ? WHERE id = ?`
	queryUpdateUserPassword = `UPDATE users SET firstName = ?, lastName = ?, email = ?, phoneNumber = ?, password = ? WHERE id = ?`
	queryUpdatePassword     = `UPDATE users SET password = ? WHERE id = ?`
	queryDeleteUser         = `DELETE FROM users WHERE id = ?`
)

// MySQLStore keeps accounts in the MySQL users table.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// OpenMySQL opens a handle for dsn and verifies it with a ping.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// conn checks out one connection for the statements of a single operation.
func (s *MySQLStore) conn(ctx context.Context) (*sql.Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

func (s *MySQLStore) ExistsByEmailOrCIN(ctx context.Context, email, cin string) (bool, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	defer c.Close()

	var n int
	if err := c.QueryRowContext(ctx, queryExistsByEmailOrCIN, email, cin).Scan(&n); err != nil {
		return false, classifyMySQL("lookup email or cin", err)
	}
	return n > 0, nil
}

func (s *MySQLStore) EmailTakenByOther(ctx context.Context, email string, id int64) (bool, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	defer c.Close()

	var n int
	if err := c.QueryRowContext(ctx, queryEmailTakenByOther, email, id).Scan(&n); err != nil {
		return false, classifyMySQL("lookup email", err)
	}
	return n > 0, nil
}

func (s *MySQLStore) Insert(ctx context.Context, u *models.User) (int64, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	res, err := c.ExecContext(ctx, queryInsertUser, u.FirstName, u.LastName, u.CIN, u.Email, u.PhoneNumber, u.Password)
	if err != nil {
		return 0, classifyMySQL("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert user: last insert id: %w", err)
	}
	return id, nil
}

func (s *MySQLStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, querySelectByEmail, email)
}

func (s *MySQLStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getOne(ctx, querySelectByID, id)
}

func (s *MySQLStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var u models.User
	err = c.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.CIN, &u.Email, &u.PhoneNumber, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyMySQL("select user", err)
	}
	return &u, nil
}

func (s *MySQLStore) Update(ctx context.Context, id int64, upd models.UserUpdate) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if upd.PasswordHash != nil {
		_, err = c.ExecContext(ctx, queryUpdateUserPassword,
			upd.FirstName, upd.LastName, upd.Email, upd.PhoneNumber, *upd.PasswordHash, id)
	} else {
		_, err = c.ExecContext(ctx, queryUpdateUser,
			upd.FirstName, upd.LastName, upd.Email, upd.PhoneNumber, id)
	}
	if err != nil {
		return classifyMySQL("update user", err)
	}
	return nil
}

func (s *MySQLStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.ExecContext(ctx, queryUpdatePassword, hash, id); err != nil {
		return classifyMySQL("update password", err)
	}
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, id int64) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.ExecContext(ctx, queryDeleteUser, id); err != nil {
		return classifyMySQL("delete user", err)
	}
	return nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MySQLStore) Close(context.Context) error {
	return s.db.Close()
}

func classifyMySQL(op string, err error) error {
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry:
		return fmt.Errorf("%w: %s", ErrDuplicate, myErr.Message)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	default:
		return fmt.Errorf("store: %s: %w", op, err)
	}
}

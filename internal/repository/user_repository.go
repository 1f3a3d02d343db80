package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userCols = "id, lastname, firstname, email, password_hash, role, status, created_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Lastname, &u.Firstname, &u.Email,
		&u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt)
	return u, err
}

// Create inserts a user and returns its ID. The email is normalized to
// lowercase before insertion; a duplicate email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, lastname, firstname, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (lastname, firstname, email, password_hash, role, status, created_at) VALUES (?,?,?,?,?,?,?)",
		lastname, firstname, email, hash, role, model.UserActive, time.Now().UTC())
	if err != nil {
		// MySQL duplicate-key is error 1062; SQLite reports "UNIQUE constraint".
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "1062") || strings.Contains(low, "unique") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByIDAndRole fetches a user only when it carries the given role.
// Used by the member/librarian admin endpoints so that a member ID
// passed to /librarians/:id yields 404 rather than leaking the row.
func (r *UserRepo) GetByIDAndRole(ctx context.Context, id uint64, role string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? AND role=? LIMIT 1", id, role))
}

// ListByRole returns all users with the given role ordered by creation
// time descending. An optional email filter narrows the result to one
// account.
func (r *UserRepo) ListByRole(ctx context.Context, role, email string) ([]model.User, error) {
	q := "SELECT " + userCols + " FROM users WHERE role=?"
	args := []interface{}{role}
	if email != "" {
		q += " AND email=?"
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Lastname, &u.Firstname, &u.Email,
			&u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update applies non-empty profile fields to a user row. Status values
// are validated by the caller against the ACTIVE/INACTIVE/SUSPENDED
// whitelist. It returns sql.ErrNoRows when the user does not exist
// with the expected role.
func (r *UserRepo) Update(ctx context.Context, id uint64, role string, lastname, firstname, email, status string) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	if lastname != "" {
		sets = append(sets, "lastname=?")
		args = append(args, lastname)
	}
	if firstname != "" {
		sets = append(sets, "firstname=?")
		args = append(args, firstname)
	}
	if email != "" {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	if status != "" {
		sets = append(sets, "status=?")
		args = append(args, status)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id, role)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=? AND role=?", args...)
	if err != nil {
		if strings.Contains(err.Error(), "1062") || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrEmailExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a user row matching both id and role.
func (r *UserRepo) Delete(ctx context.Context, id uint64, role string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=? AND role=?", id, role)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Package userstore persists the user collection and its friend edges in a
// single SQLite database. Email and Handle carry unique indexes; passwords
// are bcrypt-hashed before they ever reach a statement.
package userstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/nrednav/cuid2"
	"golang.org/x/crypto/bcrypt"

	"github.com/reseau-app/reseau/internal/model"
)

const bcryptCost = 10

type userstore struct {
	db *sqlx.DB
}

func New(dsn string) (*userstore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writes and keeps :memory: databases
	// from being dropped between pooled connections.
	db.SetMaxOpenConns(1)

	datastore := &userstore{db}
	if err := datastore.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return datastore, nil
}

func (d *userstore) Close() error {
	return d.db.Close()
}

func (d *userstore) createTables() error {
	_, err := d.db.Exec(`create table if not exists user(
		ID                   text not null primary key,
		CreatedAt            DATETIME not null,
		UpdatedAt            DATETIME null,
		Email                text not null,
		Handle               text not null,
		Name                 text not null default '',
		FirstName            text not null default '',
		Password             text not null,
		PasswordResetToken   text null,
		PasswordResetExpires DATETIME null,
		Gender               text not null default '',
		Age                  integer not null default 0,
		Location             text not null default '',
		Website              text not null default '',
		Bio                  text not null default '',
		Photo                text not null default '',
		Facebook             text not null default '',
		Google               text not null default '',
		Twitter              text not null default '',
		VK                   text not null default ''
	)`)
	if err != nil {
		return fmt.Errorf("creating user table: %w", err)
	}

	for _, stmt := range []string{
		`create unique index if not exists idx_user_email on user(Email)`,
		`create unique index if not exists idx_user_handle on user(Handle)`,
	} {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating user index: %w", err)
		}
	}

	_, err = d.db.Exec(`create table if not exists friend_edge(
		LowID       text not null,
		HighID      text not null,
		RequesterID text not null,
		Accepted    boolean not null default 0,
		CreatedAt   DATETIME not null,
		primary key (LowID, HighID)
	)`)
	if err != nil {
		return fmt.Errorf("creating friend_edge table: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func hashPassword(plaintext string) (string, error) {
	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("generating encoded password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(passwordBytes), nil
}

func (d *userstore) Create(ctx context.Context, params *model.CreateUserParams) (*model.User, error) {
	encodedPassword, err := hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:        model.UserID(cuid2.Generate()),
		CreatedAt: time.Now().UTC(),
		Email:     params.Email,
		Handle:    params.Handle,
		Password:  encodedPassword,
	}

	res, err := d.db.NamedExecContext(ctx, `insert into user
		(ID, CreatedAt, Email, Handle, Password)
		values(:ID, :CreatedAt, :Email, :Handle, :Password)`, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrorDuplicateKey
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	if rows, err := res.RowsAffected(); rows != 1 {
		return nil, fmt.Errorf("expected 1 row to be affected, got %d", rows)
	} else if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}

	return user, nil
}

func (d *userstore) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	return d.findOne(ctx, `select * from user where ID = ?`, id)
}

func (d *userstore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.findOne(ctx, `select * from user where Email = ?`, email)
}

func (d *userstore) FindByHandle(ctx context.Context, handle string) (*model.User, error) {
	return d.findOne(ctx, `select * from user where Handle = ?`, handle)
}

func (d *userstore) findOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	user := &model.User{}
	err := d.db.GetContext(ctx, user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrorUserNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return user, nil
}

// Search matches the exact handle, surname or first name, in that order of
// preference.
func (d *userstore) Search(ctx context.Context, query string) ([]model.User, error) {
	users := []model.User{}
	err := d.db.SelectContext(ctx, &users,
		`select * from user where Handle = ? or Name = ? or FirstName = ? order by Handle`,
		query, query, query)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

func (d *userstore) UpdateProfile(ctx context.Context, id model.UserID, params *model.ProfileParams) (*model.User, error) {
	now := time.Now().UTC()
	_, err := d.db.ExecContext(ctx, `update user set
		UpdatedAt = ?, Email = ?, Handle = ?, Name = ?, FirstName = ?,
		Gender = ?, Age = ?, Location = ?, Website = ?, Bio = ?
		where ID = ?`,
		now, params.Email, params.Handle, params.Name, params.FirstName,
		params.Gender, params.Age, params.Location, params.Website, params.Bio, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrorDuplicateKey
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return d.FindByID(ctx, id)
}

// UpdatePassword hashes and stores a new password and invalidates any
// outstanding reset token.
func (d *userstore) UpdatePassword(ctx context.Context, id model.UserID, plaintext string) error {
	encodedPassword, err := hashPassword(plaintext)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `update user set
		UpdatedAt = ?, Password = ?, PasswordResetToken = null, PasswordResetExpires = null
		where ID = ?`,
		time.Now().UTC(), encodedPassword, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

func (d *userstore) VerifyPassword(user *model.User, candidate string) bool {
	passwordBytes, err := base64.StdEncoding.DecodeString(user.Password)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(passwordBytes, []byte(candidate)) == nil
}

func (d *userstore) SetResetToken(ctx context.Context, id model.UserID, token string, expiresAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`update user set PasswordResetToken = ?, PasswordResetExpires = ? where ID = ?`,
		token, expiresAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("setting reset token: %w", err)
	}
	return nil
}

// FindByValidResetToken treats an expired token exactly like an unknown one.
func (d *userstore) FindByValidResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	return d.findOne(ctx,
		`select * from user where PasswordResetToken = ? and PasswordResetExpires > ?`,
		token, now.UTC())
}

var providerColumns = map[model.Provider]string{
	model.ProviderFacebook: "Facebook",
	model.ProviderGoogle:   "Google",
	model.ProviderTwitter:  "Twitter",
	model.ProviderVK:       "VK",
}

func (d *userstore) SetProvider(ctx context.Context, id model.UserID, provider model.Provider, externalID string) error {
	column, ok := providerColumns[provider]
	if !ok {
		return model.NewValidationError("provider", "unknown OAuth provider")
	}
	_, err := d.db.ExecContext(ctx,
		`update user set UpdatedAt = ?, `+column+` = ? where ID = ?`,
		time.Now().UTC(), externalID, id)
	if err != nil {
		return fmt.Errorf("linking provider: %w", err)
	}
	return nil
}

func (d *userstore) ClearProvider(ctx context.Context, id model.UserID, provider model.Provider) error {
	return d.SetProvider(ctx, id, provider, "")
}

func (d *userstore) SetPhoto(ctx context.Context, id model.UserID, ref string) error {
	_, err := d.db.ExecContext(ctx,
		`update user set UpdatedAt = ?, Photo = ? where ID = ?`,
		time.Now().UTC(), ref, id)
	if err != nil {
		return fmt.Errorf("setting photo: %w", err)
	}
	return nil
}

// Remove permanently deletes the user record and every friend edge touching
// it. Other cascades (wall content, chat history) do not exist to clean up.
func (d *userstore) Remove(ctx context.Context, id model.UserID) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from friend_edge where LowID = ? or HighID = ?`, id, id); err != nil {
		return fmt.Errorf("deleting friend edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `delete from user where ID = ?`, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing removal: %w", err)
	}
	return nil
}

func (d *userstore) GetEdge(ctx context.Context, a, b model.UserID) (*model.FriendEdge, error) {
	low, high := model.NormalizePair(a, b)
	edge := &model.FriendEdge{}
	err := d.db.GetContext(ctx, edge,
		`select * from friend_edge where LowID = ? and HighID = ?`, low, high)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrorEdgeNotFound
		}
		return nil, fmt.Errorf("fetching friend edge: %w", err)
	}
	return edge, nil
}

// PutEdge writes the edge in a single statement so a transition is never
// half-persisted.
func (d *userstore) PutEdge(ctx context.Context, edge *model.FriendEdge) error {
	edge.LowID, edge.HighID = model.NormalizePair(edge.LowID, edge.HighID)
	_, err := d.db.NamedExecContext(ctx, `insert into friend_edge
		(LowID, HighID, RequesterID, Accepted, CreatedAt)
		values(:LowID, :HighID, :RequesterID, :Accepted, :CreatedAt)
		on conflict(LowID, HighID) do update set Accepted = excluded.Accepted`, edge)
	if err != nil {
		return fmt.Errorf("writing friend edge: %w", err)
	}
	return nil
}

func (d *userstore) DeleteEdge(ctx context.Context, a, b model.UserID) error {
	low, high := model.NormalizePair(a, b)
	_, err := d.db.ExecContext(ctx,
		`delete from friend_edge where LowID = ? and HighID = ?`, low, high)
	if err != nil {
		return fmt.Errorf("deleting friend edge: %w", err)
	}
	return nil
}

func (d *userstore) EdgesFor(ctx context.Context, id model.UserID) ([]model.FriendEdge, error) {
	edges := []model.FriendEdge{}
	err := d.db.SelectContext(ctx, &edges,
		`select * from friend_edge where LowID = ? or HighID = ? order by CreatedAt`, id, id)
	if err != nil {
		return nil, fmt.Errorf("fetching friend edges: %w", err)
	}
	return edges, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/yappynotes/server/api"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and pings the DB to ensure the connection
// is working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close releases the underlying connection pool.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (pg *Postgres) EnsureSchema(ctx context.Context) error {
	models := []any{
		(*user)(nil),
		(*message)(nil),
		(*reaction)(nil),
		(*configEntry)(nil),
		(*pushSubscription)(nil),
	}
	for _, m := range models {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// One reaction per (message, user, emoji); the toggle relies on this.
	if _, err := pg.bun.NewCreateIndex().
		Model((*reaction)(nil)).
		Unique().
		IfNotExists().
		Index("reactions_message_user_emoji_idx").
		Column("message_id", "user_id", "emoji").
		Exec(ctx); err != nil {
		return fmt.Errorf("create reaction index: %w", err)
	}

	// Names are unique regardless of case.
	if _, err := pg.bun.NewCreateIndex().
		Model((*user)(nil)).
		Unique().
		IfNotExists().
		Index("users_lower_name_idx").
		ColumnExpr("lower(name)").
		Exec(ctx); err != nil {
		return fmt.Errorf("create user name index: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

// ListUsers returns all users, oldest first.
func (pg *Postgres) ListUsers(ctx context.Context) ([]api.User, error) {
	var users []user
	if err := pg.bun.NewSelect().
		Model(&users).
		Order("created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.User, len(users))
	for i, u := range users {
		out[i] = u.APIUser()
	}
	return out, nil
}

// GetUser returns the user with the given id, or api.ErrNotFound.
func (pg *Postgres) GetUser(ctx context.Context, id string) (api.User, error) {
	var u user
	err := pg.bun.NewSelect().Model(&u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, api.ErrNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("scan: %w", err)
	}
	return u.APIUser(), nil
}

// FindUserByName returns the user with the given name, matched
// case-insensitively.
func (pg *Postgres) FindUserByName(ctx context.Context, name string) (api.User, error) {
	var u user
	err := pg.bun.NewSelect().Model(&u).Where("lower(name) = lower(?)", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, api.ErrNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("scan: %w", err)
	}
	return u.APIUser(), nil
}

// CountUsers returns the total number of users.
func (pg *Postgres) CountUsers(ctx context.Context) (int, error) {
	count, err := pg.bun.NewSelect().Model((*user)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// HasAdmin reports whether any user currently holds the admin flag.
func (pg *Postgres) HasAdmin(ctx context.Context) (bool, error) {
	count, err := pg.bun.NewSelect().
		Model((*user)(nil)).
		Where("is_admin").
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count: %w", err)
	}
	return count > 0, nil
}

// InsertUser inserts a user and returns it with its generated id.
func (pg *Postgres) InsertUser(ctx context.Context, u api.User) (api.User, error) {
	m := &user{
		ID:        newID(),
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return api.User{}, fmt.Errorf("insert: %w", err)
	}
	return m.APIUser(), nil
}

// DeleteUser removes a user inside a transaction. When the target is the
// admin, another user is promoted first so the chat never goes adminless;
// deleting the only remaining user returns api.ErrSoleUser.
func (pg *Postgres) DeleteUser(ctx context.Context, id string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var target user
		err := tx.NewSelect().Model(&target).Where("id = ?", id).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan target: %w", err)
		}

		if target.IsAdmin {
			var survivor user
			err := tx.NewSelect().
				Model(&survivor).
				Where("id != ?", id).
				Order("created_at ASC").
				Limit(1).
				Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return api.ErrSoleUser
			}
			if err != nil {
				return fmt.Errorf("scan survivor: %w", err)
			}
			if _, err := tx.NewUpdate().
				Model((*user)(nil)).
				Set("is_admin = FALSE").
				Where("is_admin").
				Exec(ctx); err != nil {
				return fmt.Errorf("demote: %w", err)
			}
			if _, err := tx.NewUpdate().
				Model((*user)(nil)).
				Set("is_admin = TRUE").
				Where("id = ?", survivor.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("promote: %w", err)
			}
		}

		if _, err := tx.NewDelete().Model((*user)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return nil
	})
}

// DeleteAllUsers removes every user.
func (pg *Postgres) DeleteAllUsers(ctx context.Context) error {
	if _, err := pg.bun.NewDelete().Model((*user)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// SetAdmin makes the given user the single admin. Demote-all and promote-one
// run in one transaction so no request can observe zero or two admins.
func (pg *Postgres) SetAdmin(ctx context.Context, id string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*user)(nil)).
			Set("is_admin = FALSE").
			Where("is_admin").
			Exec(ctx); err != nil {
			return fmt.Errorf("demote: %w", err)
		}
		res, err := tx.NewUpdate().
			Model((*user)(nil)).
			Set("is_admin = TRUE").
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return api.ErrNotFound
		}
		return nil
	})
}

// ListMessages returns up to page.Limit messages, newest first.
func (pg *Postgres) ListMessages(ctx context.Context, page api.MessagePage) ([]api.Message, error) {
	var msgs []message
	q := pg.bun.NewSelect().
		Model(&msgs).
		Relation("Reactions").
		Order("created_at DESC").
		Limit(page.Limit)

	if !page.Before.IsZero() {
		q = q.Where("created_at < ?", page.Before)
	}
	if page.HiddenFrom != "" {
		q = q.Where("NOT (? = ANY(deleted_for))", page.HiddenFrom)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIMessage()
	}
	return out, nil
}

// GetMessage returns a single message with its reactions.
func (pg *Postgres) GetMessage(ctx context.Context, id string) (api.Message, error) {
	var m message
	err := pg.bun.NewSelect().
		Model(&m).
		Relation("Reactions").
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Message{}, api.ErrNotFound
	}
	if err != nil {
		return api.Message{}, fmt.Errorf("scan: %w", err)
	}
	return m.APIMessage(), nil
}

// InsertMessage inserts a message and returns it with its generated id.
func (pg *Postgres) InsertMessage(ctx context.Context, msg api.Message) (api.Message, error) {
	m := &message{
		ID:               newID(),
		UserID:           msg.UserID,
		MessageText:      msg.Text,
		ImageBase64:      msg.ImageBase64,
		AudioBase64:      msg.AudioBase64,
		ReplyToMessageID: msg.ReplyToMessageID,
		ReplyToUserID:    msg.ReplyToUserID,
		ReplyToText:      msg.ReplyToText,
		DeletedFor:       []string{},
		CreatedAt:        msg.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return api.Message{}, fmt.Errorf("insert: %w", err)
	}
	return m.APIMessage(), nil
}

// HideMessage adds userID to the message's hidden list. The guard makes the
// append idempotent and safe under concurrent hides.
func (pg *Postgres) HideMessage(ctx context.Context, messageID, userID string) error {
	if _, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("deleted_for = array_append(deleted_for, ?)", userID).
		Where("id = ?", messageID).
		Where("NOT (? = ANY(deleted_for))", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// HideAllMessages hides every message from userID that is not hidden yet.
func (pg *Postgres) HideAllMessages(ctx context.Context, userID string) error {
	if _, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("deleted_for = array_append(deleted_for, ?)", userID).
		Where("NOT (? = ANY(deleted_for))", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// DeleteAllMessages physically removes every message and reaction.
func (pg *Postgres) DeleteAllMessages(ctx context.Context) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*reaction)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*message)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
}

// ToggleReaction removes the (user, emoji) reaction if present, inserts it
// otherwise, and returns the message's updated reaction list. Delete and
// insert each touch a single uniquely-indexed row, so concurrent toggles
// commute instead of losing updates.
func (pg *Postgres) ToggleReaction(ctx context.Context, messageID, userID, emoji string) ([]api.Reaction, error) {
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*reaction)(nil)).
			Where("message_id = ?", messageID).
			Where("user_id = ?", userID).
			Where("emoji = ?", emoji).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}
		_, err = tx.NewInsert().
			Model(&reaction{
				ID:        newID(),
				MessageID: messageID,
				UserID:    userID,
				Emoji:     emoji,
				CreatedAt: time.Now().UTC(),
			}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var reactions []reaction
	if err := pg.bun.NewSelect().
		Model(&reactions).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Reaction, len(reactions))
	for i, r := range reactions {
		out[i] = r.APIReaction()
	}
	return out, nil
}

// MarkSeen stamps every unseen message not sent by userID and returns how
// many were stamped.
func (pg *Postgres) MarkSeen(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("seen_at = ?", at).
		Where("user_id != ?", userID).
		Where("seen_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// GetConfig returns the value stored under key, or api.ErrNotFound.
func (pg *Postgres) GetConfig(ctx context.Context, key string) (string, error) {
	var entry configEntry
	err := pg.bun.NewSelect().Model(&entry).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", api.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}
	return entry.Value, nil
}

// SetConfig upserts the value stored under key.
func (pg *Postgres) SetConfig(ctx context.Context, key, value string) error {
	entry := &configEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := pg.bun.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// UpsertSubscription stores a push subscription keyed by its endpoint.
func (pg *Postgres) UpsertSubscription(ctx context.Context, sub api.PushSubscription) error {
	m := &pushSubscription{
		Endpoint:      sub.Endpoint,
		UserID:        sub.UserID,
		P256dh:        sub.Keys.P256dh,
		Auth:          sub.Keys.Auth,
		NotifyUserIDs: sub.NotifyUserIDs,
		UpdatedAt:     sub.UpdatedAt,
	}
	if m.NotifyUserIDs == nil {
		m.NotifyUserIDs = []string{}
	}
	if _, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (endpoint) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("p256dh = EXCLUDED.p256dh").
		Set("auth = EXCLUDED.auth").
		Set("notify_user_ids = EXCLUDED.notify_user_ids").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// ListSubscribersOf returns every subscription that wants notifications for
// the given sender.
func (pg *Postgres) ListSubscribersOf(ctx context.Context, senderUserID string) ([]api.PushSubscription, error) {
	var subs []pushSubscription
	if err := pg.bun.NewSelect().
		Model(&subs).
		Where("? = ANY(notify_user_ids)", senderUserID).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.PushSubscription, len(subs))
	for i, s := range subs {
		out[i] = s.APISubscription()
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageCols = `id, user_id, professional_id, message, sender, message_type, created_at, read_at`

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.ChatMessage) error {
	return s.Scan(&m.ID, &m.UserID, &m.ProfessionalID, &m.Message, &m.Sender, &m.MessageType, &m.CreatedAt, &m.ReadAt)
}

// Insert writes one message row. id is assigned by the caller, created_at by
// the store; the stored timestamp is read back into m so the broadcast row is
// the authoritative one.
func (r *MessageRepository) Insert(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("msg.Insert", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chats (id, user_id, professional_id, message, sender, message_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING created_at`,
		m.ID, m.UserID, m.ProfessionalID, m.Message, m.Sender, m.MessageType,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("msgRepo.Insert: %w", err)
	}
	return nil
}

// ListConversation returns the full history for a conversation pair ordered
// by created_at ascending. No paging: every call re-fetches everything.
func (r *MessageRepository) ListConversation(ctx context.Context, key model.ConversationKey) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.ListConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chats
		 WHERE user_id = $1 AND professional_id = $2
		 ORDER BY created_at ASC`,
		key.UserID, key.ProfessionalID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListConversation query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, 64)
	for rows.Next() {
		var m model.ChatMessage
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("msgRepo.ListConversation scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListConversation rows: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.ChatMessage{}
	row := r.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM chats WHERE id = $1`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// MarkRead sets read_at for exactly the rows of the pair where read_at is
// still null and the sender is not the viewer, in one statement. Returns the
// affected ids and the timestamp written so the caller can broadcast the
// update events. Rows already read keep their original timestamp.
func (r *MessageRepository) MarkRead(ctx context.Context, key model.ConversationKey, viewerRole model.Role) ([]string, time.Time, error) {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	rows, err := r.pool.Query(ctx,
		`UPDATE chats SET read_at = NOW()
		 WHERE user_id = $1 AND professional_id = $2 AND read_at IS NULL AND sender <> $3
		 RETURNING id, read_at`,
		key.UserID, key.ProfessionalID, viewerRole,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	defer rows.Close()

	var ids []string
	var readAt time.Time
	for rows.Next() {
		var id string
		if err := rows.Scan(&id, &readAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("msgRepo.MarkRead scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("msgRepo.MarkRead rows: %w", err)
	}
	return ids, readAt, nil
}

// CountUnread returns how many messages of the pair are unread from the
// viewer's perspective.
func (r *MessageRepository) CountUnread(ctx context.Context, key model.ConversationKey, viewerRole model.Role) (int, error) {
	defer logger.DeferLogDuration("msg.CountUnread", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chats
		 WHERE user_id = $1 AND professional_id = $2 AND read_at IS NULL AND sender <> $3`,
		key.UserID, key.ProfessionalID, viewerRole,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.CountUnread: %w", err)
	}
	return n, nil
}

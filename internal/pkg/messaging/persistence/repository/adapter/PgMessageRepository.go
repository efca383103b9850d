package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/domain"
)

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (messaging.Conversation, bool, error) {
	var c messaging.Conversation
	if r == nil || r.pool == nil {
		return c, false, errors.New("PgMessageRepository: nil pool")
	}
	var created bool
	// Participants are stored in normalized order so the pair uniqueness
	// constraint holds regardless of who starts the chat. The no-op DO UPDATE
	// makes the conflicting row visible to RETURNING.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messaging.conversation (participant_a, participant_b, created_at, updated_at)
		VALUES (LEAST($1::uuid, $2::uuid), GREATEST($1::uuid, $2::uuid), now(), now())
		ON CONFLICT (participant_a, participant_b)
		DO UPDATE SET updated_at = messaging.conversation.updated_at
		RETURNING id::text, participant_a::text, participant_b::text, created_at, updated_at, last_seq, (xmax = 0)
	`, userA, userB).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt, &c.LastSeq, &created)
	return c, created, err
}

func (r *PgMessageRepository) GetConversation(ctx context.Context, conversationID string) (messaging.Conversation, error) {
	var c messaging.Conversation
	if r == nil || r.pool == nil {
		return c, errors.New("PgMessageRepository: nil pool")
	}
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, participant_a::text, participant_b::text, created_at, updated_at, last_seq
		FROM messaging.conversation
		WHERE id = $1::uuid
	`, conversationID).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt, &c.LastSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, messaging.ErrConversationGone
	}
	return c, err
}

func (r *PgMessageRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgMessageRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messaging.conversation
			WHERE id = $1::uuid AND (participant_a = $2::uuid OR participant_b = $2::uuid)
		)
	`, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *PgMessageRepository) ListConversationIDs(ctx context.Context, userID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text FROM messaging.conversation
		WHERE participant_a = $1::uuid OR participant_b = $1::uuid
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgMessageRepository) ListConversations(ctx context.Context, userID string) ([]messaging.ConversationSummary, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.participant_a::text, c.participant_b::text, c.created_at, c.updated_at, c.last_seq,
		       (SELECT count(*) FROM messaging.message m
		        WHERE m.conversation_id = c.id AND m.sender_id <> $1::uuid AND NOT m.is_read),
		       lm.seq, lm.sender_id::text, lm.content, lm.created_at, lm.is_read
		FROM messaging.conversation c
		LEFT JOIN LATERAL (
			SELECT seq, sender_id, content, created_at, is_read
			FROM messaging.message
			WHERE conversation_id = c.id
			ORDER BY seq DESC LIMIT 1
		) lm ON true
		WHERE c.participant_a = $1::uuid OR c.participant_b = $1::uuid
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messaging.ConversationSummary
	for rows.Next() {
		var (
			s         messaging.ConversationSummary
			lmSeq     *int64
			lmSender  *string
			lmContent *string
			lmCreated *time.Time
			lmRead    *bool
		)
		if err := rows.Scan(&s.ID, &s.ParticipantA, &s.ParticipantB, &s.CreatedAt, &s.UpdatedAt, &s.LastSeq,
			&s.UnreadCount, &lmSeq, &lmSender, &lmContent, &lmCreated, &lmRead); err != nil {
			return nil, err
		}
		if lmSeq != nil {
			s.LastMessage = &messaging.Message{
				ID:             *lmSeq,
				ConversationID: s.ID,
				SenderID:       *lmSender,
				Content:        *lmContent,
				CreatedAt:      *lmCreated,
				IsRead:         *lmRead,
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveMessage assigns the next sequence id and persists the message in one
// transaction. The UPDATE takes a row lock on the conversation, so two
// concurrent sends from any number of processes get distinct, totally
// ordered ids; nothing here relies on in-process serialization.
func (r *PgMessageRepository) SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	if r == nil || r.pool == nil {
		return m, errors.New("PgMessageRepository: nil pool")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return m, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int64
	err = tx.QueryRow(ctx, `
		UPDATE messaging.conversation
		SET last_seq = last_seq + 1, updated_at = $2
		WHERE id = $1::uuid
		RETURNING last_seq
	`, m.ConversationID, m.CreatedAt).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, messaging.ErrConversationGone
	}
	if err != nil {
		return m, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messaging.message (conversation_id, seq, sender_id, content, created_at, is_read, delivered, is_admin_message)
		VALUES ($1::uuid, $2, $3::uuid, $4, $5, false, false, $6)
	`, m.ConversationID, seq, m.SenderID, m.Content, m.CreatedAt, m.IsAdminMessage)
	if err != nil {
		return m, err
	}

	if err := tx.Commit(ctx); err != nil {
		return m, err
	}
	m.ID = seq
	return m, nil
}

func (r *PgMessageRepository) GetMessagesPage(ctx context.Context, conversationID string, page, perPage int) ([]messaging.Message, bool, error) {
	if r == nil || r.pool == nil {
		return nil, false, errors.New("PgMessageRepository: nil pool")
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage
	// Fetch one extra row to derive has_more without a second count query.
	rows, err := r.pool.Query(ctx, `
		SELECT seq, conversation_id::text, sender_id::text, content, created_at, is_read, delivered, is_admin_message
		FROM messaging.message
		WHERE conversation_id = $1::uuid
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, conversationID, perPage+1, offset)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var msgs []messaging.Message
	for rows.Next() {
		var m messaging.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.IsRead, &m.Delivered, &m.IsAdminMessage); err != nil {
			return nil, false, err
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, false, rows.Err()
	}
	hasMore := len(msgs) > perPage
	if hasMore {
		msgs = msgs[:perPage]
	}
	return msgs, hasMore, nil
}

func (r *PgMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgMessageRepository: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE messaging.message
		SET is_read = true
		WHERE conversation_id = $1::uuid AND sender_id <> $2::uuid AND NOT is_read
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgMessageRepository) MarkDelivered(ctx context.Context, conversationID string, messageID int64) error {
	if r == nil || r.pool == nil {
		return errors.New("PgMessageRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.message
		SET delivered = true
		WHERE conversation_id = $1::uuid AND seq = $2 AND NOT delivered
	`, conversationID, messageID)
	return err
}

func (r *PgMessageRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgMessageRepository: nil pool")
	}
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM messaging.message m
		JOIN messaging.conversation c ON c.id = m.conversation_id
		WHERE (c.participant_a = $1::uuid OR c.participant_b = $1::uuid)
		  AND m.sender_id <> $1::uuid AND NOT m.is_read
	`, userID).Scan(&n)
	return n, err
}

func (r *PgMessageRepository) SaveNotification(ctx context.Context, n messaging.Notification) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgMessageRepository: nil pool")
	}
	var id string
	// (recipient, conversation, seq) is unique, so redelivered dispatch tasks
	// land on the same row instead of duplicating the notification.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messaging.notification (recipient_id, conversation_id, message_seq, sender_id, preview, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4::uuid, $5, $6)
		ON CONFLICT (recipient_id, conversation_id, message_seq)
		DO UPDATE SET preview = EXCLUDED.preview
		RETURNING id::text
	`, n.RecipientID, n.ConversationID, n.MessageID, n.SenderID, n.Preview, n.CreatedAt).Scan(&id)
	return id, err
}

func (r *PgMessageRepository) ListNotifications(ctx context.Context, recipientID string) ([]messaging.Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, recipient_id::text, conversation_id::text, message_seq, sender_id::text, preview, created_at, seen_at
		FROM messaging.notification
		WHERE recipient_id = $1::uuid AND seen_at IS NULL
		ORDER BY created_at DESC
	`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messaging.Notification
	for rows.Next() {
		var n messaging.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.ConversationID, &n.MessageID, &n.SenderID, &n.Preview, &n.CreatedAt, &n.SeenAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

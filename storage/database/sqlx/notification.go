package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core/notification"
)

type notificationRow struct {
	ID            string      `db:"id"`
	RecipientID   string      `db:"recipient_id"`
	RecipientRole string      `db:"recipient_role"`
	SenderID      null.String `db:"sender_id"`
	Type          string      `db:"type"`
	Title         string      `db:"title"`
	Message       string      `db:"message"`
	Priority      string      `db:"priority"`
	Status        string      `db:"status"`
	RelatedType   null.String `db:"related_entity_type"`
	RelatedID     null.String `db:"related_entity_id"`
	DedupKey      string      `db:"dedup_key"`
	CreatedAt     time.Time   `db:"created_at"`
	ExpiresAt     null.Time   `db:"expires_at"`
}

func (r notificationRow) toCore() notification.Notification {
	return notification.Notification{
		ID:            r.ID,
		RecipientID:   r.RecipientID,
		RecipientRole: r.RecipientRole,
		SenderID:      r.SenderID,
		Type:          notification.Type(r.Type),
		Title:         r.Title,
		Message:       r.Message,
		Priority:      notification.Priority(r.Priority),
		Status:        notification.Status(r.Status),
		RelatedType:   r.RelatedType,
		RelatedID:     r.RelatedID,
		DedupKey:      r.DedupKey,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotification relies on the dedup-key unique index for race safety:
// two coordinator instances inserting the same key end up with one stored row
// and both learn whether theirs was the one inserted.
func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (bool, notification.Notification, error) {
	const q = `
		INSERT INTO notification
			(id, recipient_id, recipient_role, sender_id, type, title, message, priority,
			 status, related_entity_type, related_entity_id, dedup_key, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (dedup_key) DO NOTHING`

	n.ID = uuid.New().String()
	var res sql.Result
	err := withRetry(func() error {
		var err error
		res, err = repo.db.ExecContext(ctx, q,
			n.ID, n.RecipientID, n.RecipientRole, n.SenderID, n.Type, n.Title, n.Message,
			n.Priority, n.Status, n.RelatedType, n.RelatedID, n.DedupKey, n.CreatedAt, n.ExpiresAt,
		)
		return err
	})
	if err != nil {
		return false, notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		existing, err := repo.getByDedupKey(ctx, n.DedupKey)
		if err != nil {
			return false, notification.Notification{}, err
		}
		return false, existing, nil
	}
	return true, n, nil
}

func (repo *notificationRepository) getByDedupKey(ctx context.Context, key string) (notification.Notification, error) {
	const q = `SELECT * FROM notification WHERE dedup_key = $1`

	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, q, key); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification by dedup key")
	}
	return row.toCore(), nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	const q = `SELECT * FROM notification WHERE id = $1`

	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification")
	}
	return row.toCore(), nil
}

func (repo *notificationRepository) InboxNotifications(ctx context.Context, recipientID string, now time.Time) ([]notification.Notification, error) {
	const q = `
		SELECT * FROM notification
		WHERE recipient_id = $1
		  AND status <> 'archived'
		  AND (expires_at IS NULL OR expires_at >= $2)
		ORDER BY created_at DESC, id`

	rows := make([]notificationRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, recipientID, now); err != nil {
		return nil, errors.Wrap(err, "listing inbox")
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error) {
	const q = `
		SELECT count(*) FROM notification
		WHERE recipient_id = $1
		  AND status = 'unread'
		  AND (expires_at IS NULL OR expires_at >= $2)`

	var count int
	if err := repo.db.GetContext(ctx, &count, q, recipientID, now); err != nil {
		return 0, errors.Wrap(err, "counting unread")
	}
	return count, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	const q = `UPDATE notification SET status = 'read' WHERE id = $1 AND status = 'unread' RETURNING *`

	return repo.conditionalUpdate(ctx, id, notification.ErrAlreadyRead, "marking notification read", q)
}

func (repo *notificationRepository) ArchiveNotification(ctx context.Context, id string) (notification.Notification, error) {
	const q = `UPDATE notification SET status = 'archived' WHERE id = $1 AND status <> 'archived' RETURNING *`

	return repo.conditionalUpdate(ctx, id, notification.ErrAlreadyArchived, "archiving notification", q)
}

func (repo *notificationRepository) conditionalUpdate(ctx context.Context, id string, stateErr error, msg, q string) (notification.Notification, error) {
	var row notificationRow
	err := withRetry(func() error {
		return repo.db.QueryRowxContext(ctx, q, id).StructScan(&row)
	})
	if err == nil {
		return row.toCore(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return notification.Notification{}, errors.Wrap(err, msg)
	}
	if _, gerr := repo.GetNotificationByID(ctx, id); gerr != nil {
		return notification.Notification{}, gerr
	}
	return notification.Notification{}, stateErr
}

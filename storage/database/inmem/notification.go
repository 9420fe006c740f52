package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/maendeleo/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notifications}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (bool, notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// in-memory twin of the unique dedup-key index
	if existingID, ok := repo.db.keys[n.DedupKey]; ok {
		return false, *repo.db.t[existingID], nil
	}

	n.ID = uuid.New().String()
	repo.db.t[n.ID] = &n
	repo.db.keys[n.DedupKey] = n.ID
	return true, n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.t[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) InboxNotifications(ctx context.Context, recipientID string, now time.Time) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]notification.Notification, 0)
	for _, n := range repo.db.t {
		if n.RecipientID != recipientID || n.Status == notification.StatusArchived || n.Expired(now) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, n := range repo.db.t {
		if n.RecipientID == recipientID && n.Status == notification.StatusUnread && !n.Expired(now) {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n, ok := repo.db.t[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if n.Status != notification.StatusUnread {
		return notification.Notification{}, notification.ErrAlreadyRead
	}
	n.Status = notification.StatusRead
	return *n, nil
}

func (repo *notificationRepository) ArchiveNotification(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n, ok := repo.db.t[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if n.Status == notification.StatusArchived {
		return notification.Notification{}, notification.ErrAlreadyArchived
	}
	n.Status = notification.StatusArchived
	return *n, nil
}

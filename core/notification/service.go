package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/directory"
	"github.com/trezcool/maendeleo/core/staff"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("notification not found")
	ErrAlreadyRead     = core.NewInvalidStateError("notification is not unread")
	ErrAlreadyArchived = core.NewInvalidStateError("notification is already archived")
)

type (
	Repository interface {
		// CreateNotification persists a row unless one with the same dedup key
		// already exists, in which case the insert is silently skipped
		// (created=false). The dedup key carries the time bucket, so race safety
		// holds across concurrently scanning coordinator instances.
		CreateNotification(ctx context.Context, n Notification) (created bool, out Notification, err error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// InboxNotifications returns non-archived, non-expired rows, newest first.
		InboxNotifications(ctx context.Context, recipientID string, now time.Time) ([]Notification, error)
		CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error)
		// MarkNotificationRead flips Unread -> Read conditionally (ErrAlreadyRead).
		MarkNotificationRead(ctx context.Context, id string) (Notification, error)
		// ArchiveNotification flips any non-archived row to Archived.
		ArchiveNotification(ctx context.Context, id string) (Notification, error)
	}

	Service struct {
		repo     Repository
		clock    core.Clock
		dir      directory.Directory
		mailSvc  core.EmailService
		coolDown time.Duration
	}
)

func NewService(repo Repository, clock core.Clock, dir directory.Directory, mailSvc core.EmailService, coolDown time.Duration) *Service {
	return &Service{repo: repo, clock: clock, dir: dir, mailSvc: mailSvc, coolDown: coolDown}
}

type recipient struct {
	id   string
	role string
}

// resolveRecipients determines who an event concerns: assignment decisions
// notify both parties; milestone events notify the student and their main
// supervisor when one is assigned.
func resolveRecipients(evt Event) []recipient {
	var rcpts []recipient
	switch evt.Kind {
	case AssignmentApproved, AssignmentRejected:
		rcpts = append(rcpts, recipient{evt.StaffID, staff.RoleStaff})
		rcpts = append(rcpts, recipient{evt.StudentID, staff.RoleStudent})
	case DocumentReviewed:
		rcpts = append(rcpts, recipient{evt.StudentID, staff.RoleStudent})
	default:
		rcpts = append(rcpts, recipient{evt.StudentID, staff.RoleStudent})
		if evt.StaffID != "" {
			rcpts = append(rcpts, recipient{evt.StaffID, staff.RoleStaff})
		}
	}
	out := rcpts[:0]
	for _, r := range rcpts {
		if r.id != "" {
			out = append(out, r)
		}
	}
	return out
}

func renderTitle(evt Event) string {
	switch evt.Kind {
	case AssignmentApproved:
		return fmt.Sprintf("%s assignment approved", evt.Subject)
	case AssignmentRejected:
		return fmt.Sprintf("%s assignment rejected", evt.Subject)
	case MilestoneReminderDue:
		return fmt.Sprintf("Upcoming deadline: %s", evt.Subject)
	case MilestoneOverdue:
		return fmt.Sprintf("Overdue: %s", evt.Subject)
	case MilestoneCompleted:
		return fmt.Sprintf("Milestone completed: %s", evt.Subject)
	case DocumentReviewed:
		return fmt.Sprintf("Document reviewed: %s", evt.Subject)
	}
	return evt.Subject
}

func renderMessage(evt Event) string {
	switch evt.Kind {
	case AssignmentApproved:
		return fmt.Sprintf("The %s assignment has been approved.", evt.Subject)
	case AssignmentRejected:
		return fmt.Sprintf("The %s assignment request has been rejected.", evt.Subject)
	case MilestoneReminderDue:
		if evt.Deadline.Valid {
			return fmt.Sprintf("The milestone %q is due on %s.", evt.Subject, evt.Deadline.Time.Format("2 Jan 2006"))
		}
		return fmt.Sprintf("The milestone %q is due soon.", evt.Subject)
	case MilestoneOverdue:
		if evt.Deadline.Valid {
			return fmt.Sprintf("The milestone %q was due on %s and is now overdue.", evt.Subject, evt.Deadline.Time.Format("2 Jan 2006"))
		}
		return fmt.Sprintf("The milestone %q is overdue.", evt.Subject)
	case MilestoneCompleted:
		return fmt.Sprintf("The milestone %q has been completed.", evt.Subject)
	case DocumentReviewed:
		return fmt.Sprintf("Your document %q has been reviewed.", evt.Subject)
	}
	return ""
}

// Dispatch converts an event into notification rows, one per recipient,
// skipping rows suppressed by the dedup key. It returns the rows actually
// inserted so the caller knows whether delivery should happen; the email
// fan-out for those rows is fire-and-forget.
func (svc *Service) Dispatch(ctx context.Context, evt Event) ([]Notification, error) {
	now := svc.clock.Now()

	var bucket int64
	if evt.Kind.windowed() && svc.coolDown > 0 {
		bucket = now.Unix() / int64(svc.coolDown/time.Second)
	}

	typ := evt.Kind.notificationType()
	inserted := make([]Notification, 0, 2)
	for _, rcpt := range resolveRecipients(evt) {
		n := Notification{
			RecipientID:   rcpt.id,
			RecipientRole: rcpt.role,
			SenderID:      null.NewString(evt.ActorID, evt.ActorID != ""),
			Type:          typ,
			Title:         renderTitle(evt),
			Message:       renderMessage(evt),
			Priority:      evt.Kind.priority(),
			Status:        StatusUnread,
			RelatedType:   null.NewString(evt.RelatedType, evt.RelatedType != ""),
			RelatedID:     null.NewString(evt.RelatedID, evt.RelatedID != ""),
			DedupKey:      dedupKey(rcpt.id, evt.Kind, evt.RelatedType, evt.RelatedID, bucket),
			CreatedAt:     now,
		}
		created, out, err := svc.repo.CreateNotification(ctx, n)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted = append(inserted, out)
		}
	}

	if len(inserted) > 0 && svc.mailSvc != nil {
		svc.deliver(ctx, inserted)
	}
	return inserted, nil
}

// deliver hands inserted rows to the email collaborator. SendMessages is
// asynchronous; a lost email is recovered by the recipient's inbox, never by
// re-running the dispatch.
func (svc *Service) deliver(ctx context.Context, notifs []Notification) {
	msgs := make([]*core.EmailMessage, 0, len(notifs))
	for _, n := range notifs {
		addr, err := svc.recipientAddress(ctx, n)
		if err != nil {
			continue // unknown recipient: inbox row stands, no email
		}
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{addr},
			Subject: n.Title,
			BodyStr: n.Message,
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *Service) recipientAddress(ctx context.Context, n Notification) (mail.Address, error) {
	if n.RecipientRole == staff.RoleStudent {
		st, err := svc.dir.GetStudent(ctx, n.RecipientID)
		if err != nil {
			return mail.Address{}, err
		}
		return mail.Address{Name: st.Name, Address: st.Email}, nil
	}
	sf, err := svc.dir.GetStaff(ctx, n.RecipientID)
	if err != nil {
		return mail.Address{}, err
	}
	return mail.Address{Name: sf.Name, Address: sf.Email}, nil
}

// Inbox queries & transitions (driven by the out-of-scope inbox UI)

func (svc *Service) Inbox(ctx context.Context, recipientID string) ([]Notification, error) {
	return svc.repo.InboxNotifications(ctx, recipientID, svc.clock.Now())
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.CountUnread(ctx, recipientID, svc.clock.Now())
}

func (svc *Service) MarkRead(ctx context.Context, id, recipientID string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	return svc.repo.MarkNotificationRead(ctx, id)
}

func (svc *Service) Archive(ctx context.Context, id, recipientID string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	return svc.repo.ArchiveNotification(ctx, id)
}

package dao

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/crowdfund-client/pkg/notification"
)

// NotificationDao is a data access object that maps directly to the 'notifications' table in PostgreSQL.
// Seq keeps the newest-first order of the queue.
type NotificationDao struct {
	bun.BaseModel `bun:"table:notifications"`
	ID            string    `json:"id" bun:",pk,type:varchar(36)"`
	Seq           int       `json:"seq" bun:",notnull"`
	Severity      string    `json:"severity" bun:",notnull,type:varchar(16)"`
	Title         string    `json:"title" bun:",notnull,type:varchar(255)"`
	Message       string    `json:"message" bun:",notnull,type:text"`
	CreatedAt     time.Time `json:"created_at" bun:",notnull"`
	Read          bool      `json:"read" bun:",notnull,default:false"`
	ActionURL     string    `json:"action_url" bun:"action_url,type:text"`
	ActionLabel   string    `json:"action_label" bun:"action_label,type:varchar(64)"`
}

// FromNotification maps a queued notification onto its table row
func FromNotification(seq int, n notification.Notification) *NotificationDao {
	return &NotificationDao{
		ID:          n.ID,
		Seq:         seq,
		Severity:    string(n.Severity),
		Title:       n.Title,
		Message:     n.Message,
		CreatedAt:   n.CreatedAt,
		Read:        n.Read,
		ActionURL:   n.ActionURL,
		ActionLabel: n.ActionLabel,
	}
}

// ToNotification converts the row back into a notification
func (d *NotificationDao) ToNotification() notification.Notification {
	return notification.Notification{
		ID:          d.ID,
		Severity:    notification.Severity(d.Severity),
		Title:       d.Title,
		Message:     d.Message,
		CreatedAt:   d.CreatedAt,
		Read:        d.Read,
		ActionURL:   d.ActionURL,
		ActionLabel: d.ActionLabel,
	}
}

package domain

import "time"

// NotificationKind mirrors the inbound activity kinds that raise a
// notification for a local actor.
type NotificationKind string

const (
	NotificationFollow  NotificationKind = "follow"
	NotificationLike    NotificationKind = "like"
	NotificationReply   NotificationKind = "reply"
	NotificationMention NotificationKind = "mention"
)

// Notification is the lean record kept alongside activities: which local
// actor it is for, which activity raised it, and when.
type Notification struct {
	Id         int64
	ActorID    int64 // the local actor this notification is for
	ActivityID int64
	Kind       NotificationKind
	CreatedAt  time.Time
}

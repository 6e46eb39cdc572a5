// internal/domain/notification/entity.go
package notification

import "time"

type Type string

const (
	TypeComment           Type = "COMMENT"
	TypeLike              Type = "LIKE"
	TypeAssignmentCreated Type = "ASSIGNMENT_CREATED"
	TypeAssignmentDue     Type = "ASSIGNMENT_DUE"
	TypeAssignmentGraded  Type = "ASSIGNMENT_GRADED"
	TypeProblemPostLiked  Type = "PROBLEM_POST_LIKED"
	TypeSystem            Type = "SYSTEM"
)

// Notification is a server-owned record; the client only caches it.
type Notification struct {
	ID                string     `json:"id"`
	Type              Type       `json:"type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	IsRead            bool       `json:"isRead"`
	RelatedEntityID   string     `json:"relatedEntityId,omitempty"`
	RelatedEntityType string     `json:"relatedEntityType,omitempty"`
	ActionURL         string     `json:"actionUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
}

// internal/domain/notification/dto.go
package notification

// Page is the server's pagination envelope for notification listings.
type Page struct {
	Content       []Notification `json:"content"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
	Size          int            `json:"size"`
	Number        int            `json:"number"`
	First         bool           `json:"first"`
	Last          bool           `json:"last"`
	Empty         bool           `json:"empty"`
}

// UnreadCountResponse wraps the unread counter endpoint's payload.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAsReadResponse is returned by the single mark-read endpoint.
type MarkAsReadResponse struct {
	Success bool `json:"success"`
}

// MarkAllAsReadResponse is returned by the bulk mark-read endpoint.
type MarkAllAsReadResponse struct {
	MarkedCount int `json:"markedCount"`
}

package model

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Limit returns the page size clamped to a sane window.
func (p Pagination) Limit() int {
	if p.PageSize < 1 {
		return 25
	}
	if p.PageSize > 200 {
		return 200
	}
	return p.PageSize
}

// Offset returns the row offset for the requested page.
func (p Pagination) Offset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.Limit()
}

// HistoryFilters narrows a history listing.
type HistoryFilters struct {
	UnreadOnly bool       `json:"unread_only" form:"unread_only"`
	EventType  *EventType `json:"event_type,omitempty" form:"event_type"`
	BugID      *int64     `json:"bug_id,omitempty" form:"bug_id"`
}

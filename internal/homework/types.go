package homework

import "strconv"

// Response keys of the status API.
const (
	KeyHomeworks   = "homeworks"
	KeyCurrentDate = "current_date"
	KeyName        = "homework_name"
	KeyStatus      = "status"
)

// Cursor is a Unix timestamp (seconds) passed as from_date.
type Cursor int64

func (c Cursor) String() string { return strconv.FormatInt(int64(c), 10) }

// StatusResponse is a response that passed Validate.
type StatusResponse struct {
	// Homeworks is most-recent-first; the API guarantees the ordering.
	Homeworks   []any
	CurrentDate Cursor
}

// Item is the part of a homework entry we report on.
type Item struct {
	Name   string
	Status string
}

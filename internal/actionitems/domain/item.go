package actionitems

import (
	"errors"
	"time"
)

// Status tracks the lifecycle of an action item.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// NormalizeStatus validates a status string.
func NormalizeStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusOpen, StatusInProgress, StatusDone:
		return Status(value), true
	default:
		return "", false
	}
}

// ErrNotFound indicates the action item does not exist.
var ErrNotFound = errors.New("action item not found")

// Item is a follow-up task, optionally linked to the anomaly that
// prompted it.
type Item struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	LocationID string    `json:"locationId,omitempty"`
	AnomalyID  string    `json:"anomalyId,omitempty"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	Assignee   string    `json:"assignee,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks required fields before persistence.
func (i Item) Validate() error {
	if i.OrgID == "" {
		return errors.New("action item: org id required")
	}
	if i.Title == "" {
		return errors.New("action item: title required")
	}
	if _, ok := NormalizeStatus(string(i.Status)); !ok {
		return errors.New("action item: invalid status")
	}
	return nil
}

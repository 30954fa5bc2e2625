package action

import "time"

const (
	StatusActive     = "active"
	StatusSuccessful = "successful"
	StatusScheduled  = "scheduled"
	StatusFailed     = "failed"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusSuccessful: true, StatusScheduled: true, StatusFailed: true,
}

// ValidStatus reports whether s is one of the four action statuses.
func ValidStatus(s string) bool { return validStatuses[s] }

// Action is a task the agent performs for a patient. ID is the document key
// within the patient's action collection.
type Action struct {
	ID          string             `json:"id"`
	PatientID   string             `json:"patient_id"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ActivityLog []ActivityLogEntry `json:"activity_log"`
}

// ActivityLogEntry is one step the agent recorded against an action. Entries
// are only ever appended.
type ActivityLogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Details     string    `json:"details"`
	Description string    `json:"description"`
}

// Clone returns a deep copy so callers can hand actions across goroutines.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	cp := *a
	cp.ActivityLog = append([]ActivityLogEntry(nil), a.ActivityLog...)
	return &cp
}

// FeedEntry is an activity-log entry flattened out of its action.
type FeedEntry struct {
	ActionID  string `json:"action_id"`
	PatientID string `json:"patient_id"`
	ActivityLogEntry
}

// AttentionItem is a failed action together with the name of its patient.
type AttentionItem struct {
	Action      *Action `json:"action"`
	PatientName string  `json:"patient_name"`
}

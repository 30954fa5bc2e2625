package careplan

import "time"

// Snapshot is one immutable version of a patient's care-plan note. Edits are
// saved as a new snapshot.
type Snapshot struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	TextBlock        string    `json:"text_block"`
	RequiresRevision bool      `json:"requiresRevision"`
	Flags            []string  `json:"flags"`
	Suggestions      []string  `json:"suggestions"`
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Flags = append([]string(nil), s.Flags...)
	cp.Suggestions = append([]string(nil), s.Suggestions...)
	return &cp
}

// PendingReview is a snapshot that still requires revision.
type PendingReview struct {
	PatientID       string    `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	SnapshotID      string    `json:"snapshot_id"`
	CreatedAt       time.Time `json:"created_at"`
	FlagCount       int       `json:"flag_count"`
	SuggestionCount int       `json:"suggestion_count"`
}

// Preview is the note after replaying accepted suggestions, without saving.
type Preview struct {
	SnapshotID  string   `json:"snapshot_id"`
	Text        string   `json:"text"`
	Highlighted []int    `json:"highlighted_lines"`
	Accepted    []string `json:"accepted"`
	Unmatched   []string `json:"unmatched,omitempty"`
}

package models

// MutationAction classifies a queued local write.
type MutationAction string

const (
	ActionCreate MutationAction = "create"
	ActionUpdate MutationAction = "update"
	ActionDelete MutationAction = "delete"
)

// Mutation is one not-yet-acknowledged local write in the mutation queue.
// The autoincremented ID establishes FIFO order; Timestamp is the enqueue
// time in unix milliseconds and doubles as the conflict tie-breaker for the
// payload it carries.
type Mutation struct {
	ID         int64          `json:"id"`
	Entity     string         `json:"entity"`
	RecordKey  string         `json:"record_key"`
	Action     MutationAction `json:"action"`
	Payload    Record         `json:"payload"`
	Timestamp  int64          `json:"timestamp"`
	Synced     bool           `json:"synced"`
	Failed     bool           `json:"failed"`
	FailReason string         `json:"fail_reason,omitempty"`
}

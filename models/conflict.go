package models

// Conflict captures a divergence detected during drain: the server's version
// of a record changed after the local snapshot the mutation was based on.
// Local holds the payload of the losing-or-winning local mutation, Remote the
// server's version at detection time. Resolved conflicts are kept until
// cleared so an operator can audit or override the automatic decision.
type Conflict struct {
	ID        int64  `json:"id"`
	Entity    string `json:"entity"`
	RecordKey string `json:"record_key"`
	Local     Record `json:"local"`
	Remote    Record `json:"remote"`
	Timestamp int64  `json:"timestamp"`
	Resolved  bool   `json:"resolved"`
}

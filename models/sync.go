package models

// SyncSummary reports the outcome of one drain pass over the mutation queue.
type SyncSummary struct {
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
	Skipped   int `json:"skipped"`
}

// Empty reports whether the pass had nothing to do.
func (s SyncSummary) Empty() bool {
	return s.Applied == 0 && s.Failed == 0 && s.Conflicts == 0 && s.Skipped == 0
}

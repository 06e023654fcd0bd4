package models

// Setting categories used by the engine.
const (
	SettingCategorySync    = "sync"
	SettingCategorySession = "session"
)

// LastSyncKey returns the settings key holding the last successful refresh
// watermark for a collection.
func LastSyncKey(collection string) string {
	return "lastSync_" + collection
}

// Setting is one persisted key/value metadata entry, e.g. a
// lastSync_<collection> watermark.
type Setting struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

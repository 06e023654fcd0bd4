// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nadezhda Malikova

package models

import (
	"fmt"
	"strconv"
	"time"
)

// Engine-owned metadata fields embedded into a stored [Record]. Domain code
// never writes these; the sync engine owns their whole lifecycle.
const (
	FieldLocal     = "_local"
	FieldDeleted   = "_deleted"
	FieldDeletedAt = "_deletedAt"
	FieldTimestamp = "_timestamp"
)

// LocalKeyPrefix marks primary keys generated on this device for records the
// server has not acknowledged yet.
const LocalKeyPrefix = "local_"

// keyFields are the primary key field names recognised across entities, in
// lookup order.
var keyFields = []string{"id", "_id"}

// Record is one opaque domain record (a case, a student, a piece of
// evidence). The engine never interprets domain fields; it only reads the
// primary key and reads/writes its own metadata fields.
type Record map[string]any

// Key returns the record's primary key as a string and whether a key field
// is present. Numeric keys (common after JSON decoding) are formatted
// without a fractional part.
func (r Record) Key() (string, bool) {
	field, ok := r.KeyField()
	if !ok {
		return "", false
	}
	return formatKey(r[field]), true
}

// KeyField returns the name of the primary key field present in the record.
func (r Record) KeyField() (string, bool) {
	for _, f := range keyFields {
		if v, ok := r[f]; ok && v != nil {
			return f, true
		}
	}
	return "", false
}

// SetKey writes key into the record's primary key field. If the record has
// no key field yet, "id" is used.
func (r Record) SetKey(key string) {
	field, ok := r.KeyField()
	if !ok {
		field = keyFields[0]
	}
	r[field] = key
}

// IsLocal reports whether the record was created on this device and still
// carries a locally generated placeholder key.
func (r Record) IsLocal() bool {
	v, _ := r[FieldLocal].(bool)
	return v
}

// MarkLocal assigns the placeholder key and flags the record as
// locally created.
func (r Record) MarkLocal(key string) {
	r.SetKey(key)
	r[FieldLocal] = true
}

// Deleted reports whether the record carries the soft-delete marker.
func (r Record) Deleted() bool {
	v, _ := r[FieldDeleted].(bool)
	return v
}

// MarkDeleted sets the soft-delete marker with the given deletion time
// (unix milliseconds).
func (r Record) MarkDeleted(at int64) {
	r[FieldDeleted] = true
	r[FieldDeletedAt] = at
}

// Timestamp returns the last local modification time in unix milliseconds,
// or zero if the record has never been touched by the engine.
func (r Record) Timestamp() int64 {
	return asInt64(r[FieldTimestamp])
}

// Touch records ts (unix milliseconds) as the last local modification time.
func (r Record) Touch(ts int64) {
	r[FieldTimestamp] = ts
}

// LastModified returns the server-side last-modified time in unix
// milliseconds, used as the conflict tie-breaker. It prefers the
// collaborator's updatedAt field (RFC 3339 string or epoch number) and falls
// back to the engine's own _timestamp.
func (r Record) LastModified() int64 {
	if v, ok := r["updatedAt"]; ok {
		switch t := v.(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed.UnixMilli()
			}
		default:
			if ms := asInt64(v); ms > 0 {
				return ms
			}
		}
	}
	return r.Timestamp()
}

// Clone returns a shallow copy of the record. Engine code clones before
// mutating metadata so cached values handed to callers stay stable.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Export returns a copy of the record stripped of all engine-owned metadata
// fields, suitable for sending to the server.
func (r Record) Export() Record {
	out := r.Clone()
	delete(out, FieldLocal)
	delete(out, FieldDeleted)
	delete(out, FieldDeletedAt)
	delete(out, FieldTimestamp)
	return out
}

func formatKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// json.Unmarshal decodes numbers into float64
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

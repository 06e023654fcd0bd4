package utils

import (
	"github.com/google/uuid"

	"github.com/nmalikova/caseline/models"
)

// UUIDGenerator produces keys for records created on this device. V7 UUIDs
// are time-ordered, so locally created records keep their creation order
// when listed by key.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a bare UUID string.
func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}

// LocalRecordKey returns a placeholder key for a record the server has not
// acknowledged yet. The prefix marks the key as device-local; the
// server-assigned key replaces it during drain.
func (g *UUIDGenerator) LocalRecordKey() string {
	return models.LocalKeyPrefix + g.Generate()
}

package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewCorrelation returns a request correlation id of the form san8n_<uuid v4>.
func NewCorrelation() string {
	return "san8n_" + uuid.NewString()
}

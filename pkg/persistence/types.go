package persistence

import (
	"sort"

	"github.com/Layr-Labs/secora-signer-go/pkg/types"
)

// SigningRecord is the journal entry for one signing request. Byte values are
// stored as 0x prefixed hex so records stay readable in any backend.
type SigningRecord struct {
	// ID is a unique journal id (uuid) assigned by the orchestrator
	ID string `json:"id"`

	// RequestID is the id the request source attached to the request
	RequestID int64 `json:"requestId"`

	Kind      types.SignRequestKind `json:"kind"`
	KeyHandle int                   `json:"keyHandle"`
	Digest    string                `json:"digest,omitempty"`

	Approved bool `json:"approved"`

	// ErrorKind, Reason and FailedState are set for rejected requests
	ErrorKind   string `json:"errorKind,omitempty"`
	Reason      string `json:"reason,omitempty"`
	FailedState string `json:"failedState,omitempty"`

	// Counters exactly as returned by the secure element
	SigCounter       string `json:"sigCounter,omitempty"`
	GlobalSigCounter string `json:"globalSigCounter,omitempty"`

	// Result is the approved value: signature, raw transaction or tx hash
	Result string `json:"result,omitempty"`

	// CreatedAt is a Unix timestamp in milliseconds
	CreatedAt int64 `json:"createdAt"`
}

// Copy returns a deep copy of the record
func (r *SigningRecord) Copy() *SigningRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// SortRecords orders records by creation time, then by ID
func SortRecords(records []*SigningRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}

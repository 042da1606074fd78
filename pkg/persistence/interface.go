package persistence

// ISigningJournal records the outcome of every orchestrated signing request.
// All implementations must be thread-safe.
type ISigningJournal interface {
	// SaveRecord persists a record keyed by its ID, overwriting any previous
	// record with the same ID.
	SaveRecord(record *SigningRecord) error

	// LoadRecord retrieves a record by ID.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadRecord(id string) (*SigningRecord, error)

	// ListRecords returns all records sorted by creation time (ascending).
	// Returns empty slice if no records exist, error only on storage failure.
	ListRecords() ([]*SigningRecord, error)

	// DeleteRecord removes a record by ID.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteRecord(id string) error

	// Close cleanly shuts down the journal.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the journal is operational.
	HealthCheck() error
}

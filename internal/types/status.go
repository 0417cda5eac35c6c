package types

// Status is a type for the lifecycle status of a row in the database.
// It is orthogonal to any domain state machine: archived/deleted rows are
// excluded from queries by default.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

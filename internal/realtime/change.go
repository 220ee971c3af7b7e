package realtime

import "context"

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change announces a row mutation in one of the admin tables.
type Change struct {
	Table string `json:"table"`
	Op    Op     `json:"op"`
	ID    string `json:"id"`
}

// PublishChange is a no-op on a nil broker so services can run without one.
func PublishChange(ctx context.Context, b Broker, table string, op Op, id string) error {
	if b == nil {
		return nil
	}
	return b.Publish(ctx, TopicChanges, Change{Table: table, Op: op, ID: id})
}

// Package audit holds the append-only record of writes made through the repositories.
package audit

import (
	"reflect"
	"sort"
	"time"
)

// Operation is the kind of write that was recorded
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// SystemActor is recorded when no actor was put on the context
const SystemActor = "system"

// Entry is one audited write. OldValues is nil for inserts and NewValues is
// nil for deletes.
type Entry struct {
	ID        string         `json:"id"`
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id"`
	Operation Operation      `json:"operation"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	Actor     string         `json:"actor"`
	CreatedAt time.Time      `json:"created_at"`
}

// ChangedFields lists, sorted, the keys whose values differ between old and new
func (e *Entry) ChangedFields() []string {
	var changed []string
	for k, nv := range e.NewValues {
		if ov, ok := e.OldValues[k]; !ok || !reflect.DeepEqual(ov, nv) {
			changed = append(changed, k)
		}
	}
	for k := range e.OldValues {
		if _, ok := e.NewValues[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

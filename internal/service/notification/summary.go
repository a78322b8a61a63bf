package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/littlefarms/taskboard-api/internal/model"
)

const timestampLayout = "2 Jan 2006, 3:04 PM"

// changeSummary renders the aggregated body for a task-update
// notification: one line per changed field, in the order the fields
// were supplied. Nothing is merged or suppressed.
func changeSummary(changes []model.ChangeRecord) string {
	var b strings.Builder
	b.WriteString("The following fields were updated:\n")
	for _, c := range changes {
		fmt.Fprintf(&b, "- %s: \"%s\" → \"%s\"\n", c.Field, formatValue(c.Old), formatValue(c.New))
	}
	return b.String()
}

// titleFromChanges returns the new task title when the diff contains a
// title change, otherwise the empty string.
func titleFromChanges(changes []model.ChangeRecord) string {
	for _, c := range changes {
		if c.Field == "title" {
			return formatValue(c.New)
		}
	}
	return ""
}

// formatValue renders a decoded diff value for humans. Legacy payloads
// carry document references as {path: ...} objects and timestamps as
// {_seconds, _nanoseconds} pairs.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		if path, ok := val["path"].(string); ok {
			return path
		}
		if secs, ok := val["_seconds"].(float64); ok {
			nanos, _ := val["_nanoseconds"].(float64)
			return time.Unix(int64(secs), int64(nanos)).Format(timestampLayout)
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}

package notification

// TaskLink builds the canonical deep link for a task or subtask. The
// path is stored verbatim on every notification produced for that
// context; the frontend base URL is only prepended at email delivery
// time.
func TaskLink(taskID, subtaskID string) string {
	if subtaskID == "" {
		return "/all-tasks/" + taskID
	}
	return "/all-tasks/" + taskID + "/" + subtaskID
}

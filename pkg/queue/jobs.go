package queue

// SyncJob asks a worker to run an incremental mailbox sync for one
// account. HistoryID is only a hint; the durable cursor wins.
type SyncJob struct {
	EmailAddress string `json:"email_address"`
	HistoryID    string `json:"history_id"`
}

// NotifyJob carries one notification event to the dispatcher workers.
// Several producers (rule matches, reminders, digests) publish this
// same shape.
type NotifyJob struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Type   string            `json:"type"`
	Extra  map[string]string `json:"extra,omitempty"`
}

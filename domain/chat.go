package domain

const MaxMessageLen = 1000

// Message is one chat log entry. Sender is the username captured at send
// time; later renames do not rewrite history.
type Message struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	At     int64  `json:"at"`
}

package domain

const MaxGroupNameLen = 64

// Group is the crew metadata record. Member and invite sets are stored
// separately so they can be mutated without rewriting the metadata.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt int64  `json:"createdAt"`
}

// Member pairs a member's id with the username resolved at read time.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ValidGroupName accepts any non-empty name up to MaxGroupNameLen bytes.
func ValidGroupName(name string) bool {
	return name != "" && len(name) <= MaxGroupNameLen
}

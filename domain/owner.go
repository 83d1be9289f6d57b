package domain

// Owner keys name the storage namespace a task collection lives under:
// either a user's personal workspace or a group's shared one.

// UserOwner returns the owner key of a user's personal workspace.
func UserOwner(userID string) string { return "user:" + userID }

// GroupOwner returns the owner key of a group's shared workspace.
func GroupOwner(groupID string) string { return "group:" + groupID }

// SettingsPatch carries the optional settings-update fields; nil means
// "leave unchanged".
type SettingsPatch struct {
	Theme    *string
	Sound    *bool
	Language *string
	Avatar   *string
}

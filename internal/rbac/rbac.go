// Package rbac decides which catalog operations a role may perform.
package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleAssistant Role = "assistant"
	RoleCoach     Role = "coach"
	RoleAdmin     Role = "admin"
)

const (
	// ActionRead covers listing, searching, usage and template download.
	ActionRead Action = "read"
	// ActionEdit covers draft work: create, edit, upload, videos.
	ActionEdit Action = "edit"
	// ActionDelete covers hard deletes and batch removal.
	ActionDelete Action = "delete"
	// ActionPublish covers activation changes and submit.
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleCoach:
		return action == ActionRead || action == ActionEdit || action == ActionDelete || action == ActionPublish
	case RoleAssistant:
		return action == ActionRead || action == ActionEdit
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAssistant, RoleCoach, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}

package rbac

type Role string
type Action string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

const (
	ActionBrowse Action = "browse"
	ActionUpload Action = "upload"
	ActionAdmin  Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return action == ActionBrowse || action == ActionUpload
	case RoleUser:
		return action == ActionBrowse
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAgent, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

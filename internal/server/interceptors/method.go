package interceptors

import "strings"

// MethodInfo holds the action and resource derived from a gRPC full method name.
type MethodInfo struct {
	Action   string
	Resource string
}

// Membership-changing methods get explicit actions so access logs read as membership events.
var methodOverrides = map[string]MethodInfo{
	"/collab.project.v1.ProjectService/AddMember":           {Action: "member_added", Resource: "project"},
	"/collab.project.v1.ProjectService/AddTeam":             {Action: "team_added", Resource: "project"},
	"/collab.project.v1.ProjectService/RemoveMember":        {Action: "member_removed", Resource: "project"},
	"/collab.organization.v1.OrganizationService/AddMember": {Action: "member_added", Resource: "organization"},
	"/collab.team.v1.TeamService/AddMember":                 {Action: "member_added", Resource: "team"},
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /collab.project.v1.ProjectService/DeleteProject -> delete, project).
func ParseFullMethod(fullMethod string) MethodInfo {
	if mi, ok := methodOverrides[fullMethod]; ok {
		return mi
	}
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return MethodInfo{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return MethodInfo{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return MethodInfo{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, p := range []struct{ prefix, action string }{
		{"Get", "get"},
		{"List", "list"},
		{"Create", "create"},
		{"Update", "update"},
		{"Delete", "delete"},
		{"Add", "add"},
		{"Remove", "remove"},
		{"Register", "register"},
		{"Login", "login"},
	} {
		if strings.HasPrefix(method, p.prefix) && method != p.prefix {
			return p.action
		}
	}
	return strings.ToLower(method)
}

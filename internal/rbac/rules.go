package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:take",
		"attempt:start",
		"attempt:answer",
		"attempt:submit",
		"attempt:view-own",
		"user:change_password",
	},
	"teacher": {
		"quiz:create",
		"quiz:delete_own",
		"quiz:take",
		"attempt:view-all",
		"attempt:grade",
		"attempt:publish",
		"enroll:manage",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}

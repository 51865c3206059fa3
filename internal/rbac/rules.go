package rbac

// Default policy. Learners consume published content and their own
// submissions; admins author content and run external grading.
var RolePermissions = map[string][]string{
	"learner": {
		"test:view",
		"skill:view",
		"submission:create",
		"submission:view-own",
	},
	"admin": {
		"*", // everything
	},
}

package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer edit", role: RoleViewer, action: ActionEdit, allow: false},
		{name: "assistant edit", role: RoleAssistant, action: ActionEdit, allow: true},
		{name: "assistant delete", role: RoleAssistant, action: ActionDelete, allow: false},
		{name: "assistant publish", role: RoleAssistant, action: ActionPublish, allow: false},
		{name: "coach delete", role: RoleCoach, action: ActionDelete, allow: true},
		{name: "coach publish", role: RoleCoach, action: ActionPublish, allow: true},
		{name: "coach admin", role: RoleCoach, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("coach"); got != RoleCoach {
		t.Fatalf("Normalize(coach) = %q", got)
	}
	if got := Normalize("superuser"); got != RoleViewer {
		t.Fatalf("Normalize(superuser) = %q, want viewer", got)
	}
}

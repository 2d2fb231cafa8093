package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOwner, ActionManage, true},
		{RoleOwner, ActionRead, true},
		{RoleAdmin, ActionManage, true},
		{RoleAdmin, ActionCreate, true},
		{RoleMember, ActionRead, true},
		{RoleMember, ActionCreate, true},
		{RoleMember, ActionManage, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionCreate, false},
		{RoleViewer, ActionManage, false},
		{Role("stranger"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalizeDefaultsToViewer(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatalf("expected admin to normalize to admin")
	}
	if Normalize("owner") != RoleViewer {
		t.Fatalf("owner must not be assignable via Normalize")
	}
	if Normalize("??") != RoleViewer {
		t.Fatalf("unknown roles normalize to viewer")
	}
}

func TestAssignable(t *testing.T) {
	for _, role := range []string{"admin", "member", "viewer"} {
		if !Assignable(role) {
			t.Errorf("expected %s to be assignable", role)
		}
	}
	if Assignable("owner") {
		t.Errorf("owner must not be assignable")
	}
	if Assignable("") {
		t.Errorf("empty role must not be assignable")
	}
}

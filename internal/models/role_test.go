package models

import (
	"testing"
)

func TestParseResource(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "user", input: "User", wantErr: false},
		{name: "announcement", input: "Announcement", wantErr: false},
		{name: "lowercase rejected", input: "user", wantErr: true},
		{name: "unknown", input: "Invoice", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseResource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestAuthorities_Allows(t *testing.T) {
	auths := Authorities{
		{Resource: ResourceUser, Actions: []Action{ActionRead, ActionCreate}},
		{Resource: ResourceAnnouncement, Actions: []Action{ActionRead}},
	}

	tests := []struct {
		name     string
		resource Resource
		action   Action
		expected bool
	}{
		{name: "granted action", resource: ResourceUser, action: ActionCreate, expected: true},
		{name: "action not granted", resource: ResourceUser, action: ActionDelete, expected: false},
		{name: "resource not granted", resource: ResourceRole, action: ActionRead, expected: false},
		{name: "read only resource", resource: ResourceAnnouncement, action: ActionRead, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := auths.Allows(tt.resource, tt.action); got != tt.expected {
				t.Errorf("Allows(%s, %s) = %v, want %v", tt.resource, tt.action, got, tt.expected)
			}
		})
	}
}

func TestAuthorities_Validate(t *testing.T) {
	valid := Authorities{{Resource: ResourceTicket, Actions: []Action{ActionRead}}}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	badAction := Authorities{{Resource: ResourceTicket, Actions: []Action{"PUBLISH"}}}
	if err := badAction.Validate(); err == nil {
		t.Error("Validate() with unknown action = nil, want error")
	}

	noActions := Authorities{{Resource: ResourceTicket}}
	if err := noActions.Validate(); err == nil {
		t.Error("Validate() with empty actions = nil, want error")
	}
}

func TestDefaultRoles(t *testing.T) {
	roles := DefaultRoles()
	byName := make(map[string]Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}

	admin := byName[RoleAdmin]
	for _, res := range AllResources {
		for _, act := range AllActions {
			if !admin.Authorities.Allows(res, act) {
				t.Errorf("ADMIN should allow %s on %s", act, res)
			}
		}
	}

	client := byName[RoleClient]
	if client.Authorities.Allows(ResourceAnnouncement, ActionCreate) {
		t.Error("CLIENT should not create announcements")
	}
	if !client.Authorities.Allows(ResourceTicket, ActionCreate) {
		t.Error("CLIENT should create tickets")
	}

	employee := byName[RoleEmployee]
	if !employee.Authorities.Allows(ResourceAnnouncement, ActionDelete) {
		t.Error("EMPLOYEE should delete announcements")
	}
	if employee.Authorities.Allows(ResourceUser, ActionRead) {
		t.Error("EMPLOYEE should not read users")
	}

	for _, r := range roles {
		if err := r.Authorities.Validate(); err != nil {
			t.Errorf("seed role %s invalid: %v", r.Name, err)
		}
	}
}

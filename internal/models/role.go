package models

import (
	"fmt"
	"slices"
	"time"
)

// Resource names a protected entity type.
type Resource string

const (
	ResourceUser         Resource = "User"
	ResourceRole         Resource = "Role"
	ResourceTicket       Resource = "Ticket"
	ResourceAnnouncement Resource = "Announcement"
	ResourceAttachment   Resource = "Attachment"
)

// AllResources lists every protected resource in declaration order.
var AllResources = []Resource{
	ResourceUser, ResourceRole, ResourceTicket, ResourceAnnouncement, ResourceAttachment,
}

// Action names an operation on a resource.
type Action string

const (
	ActionRead   Action = "READ"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// AllActions lists every action in declaration order.
var AllActions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !slices.Contains(AllResources, r) {
		return "", fmt.Errorf("unknown resource %q", s)
	}
	return r, nil
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !slices.Contains(AllActions, a) {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Authority grants a set of actions on one resource.
type Authority struct {
	Resource Resource `json:"resource"`
	Actions  []Action `json:"actions"`
}

// Validate rejects unknown resources or actions and empty action lists.
func (a Authority) Validate() error {
	if _, err := ParseResource(string(a.Resource)); err != nil {
		return err
	}
	if len(a.Actions) == 0 {
		return fmt.Errorf("authority for %s has no actions", a.Resource)
	}
	for _, action := range a.Actions {
		if _, err := ParseAction(string(action)); err != nil {
			return err
		}
	}
	return nil
}

// Authorities is the full grant set of a role.
type Authorities []Authority

// Allows reports whether the set grants action on resource. Exact match only.
func (as Authorities) Allows(resource Resource, action Action) bool {
	for _, a := range as {
		if a.Resource == resource && slices.Contains(a.Actions, action) {
			return true
		}
	}
	return false
}

// Validate checks every authority in the set.
func (as Authorities) Validate() error {
	for _, a := range as {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Authorities Authorities `json:"authorities"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// RoleUpdate is a partial role change. Nil fields are left untouched.
type RoleUpdate struct {
	Name        *string
	Authorities *Authorities
}

func (u RoleUpdate) IsEmpty() bool {
	return u.Name == nil && u.Authorities == nil
}

// Built-in role names.
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
	RoleClient   = "CLIENT"
)

// DefaultRoles returns the roles every installation starts with.
func DefaultRoles() []Role {
	all := make(Authorities, 0, len(AllResources))
	for _, r := range AllResources {
		all = append(all, Authority{Resource: r, Actions: slices.Clone(AllActions)})
	}

	return []Role{
		{Name: RoleAdmin, Authorities: all},
		{Name: RoleEmployee, Authorities: Authorities{
			{Resource: ResourceTicket, Actions: []Action{ActionRead, ActionUpdate}},
			{Resource: ResourceAnnouncement, Actions: slices.Clone(AllActions)},
			{Resource: ResourceAttachment, Actions: []Action{ActionCreate, ActionRead}},
		}},
		{Name: RoleClient, Authorities: Authorities{
			{Resource: ResourceTicket, Actions: []Action{ActionCreate}},
			{Resource: ResourceAnnouncement, Actions: []Action{ActionRead}},
			{Resource: ResourceAttachment, Actions: []Action{ActionCreate, ActionRead}},
		}},
	}
}

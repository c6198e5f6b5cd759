// Package authz answers the role-level question "may this role attempt this
// action at all". Per-record ownership (own request, assigned analyst) is a
// separate check performed by the services after the gate passes.
package authz

import "lab-request-system/pkg/constants"

type Action string

const (
	ActionRequestCreate        Action = "request:create"
	ActionRequestClaim         Action = "request:claim"
	ActionRequestUpdateAnalyst Action = "request:update_analyst"
	ActionRequestUpdateChemist Action = "request:update_chemist"
	ActionRequestView          Action = "request:view"
	ActionRequestExport        Action = "request:export"
	ActionFileUpload           Action = "file:upload"
	ActionFileDownload         Action = "file:download"
	ActionFileDelete           Action = "file:delete"
	ActionTypeView             Action = "analysis_type:view"
	ActionTypeManage           Action = "analysis_type:manage"
	ActionUserManage           Action = "user:manage"
	ActionAuditView            Action = "audit:view"
)

type Gate struct {
	allowed map[Action]map[constants.UserRole]struct{}
}

// NewGate builds the static role sets per action. Admin is not listed; it
// passes every check.
func NewGate() *Gate {
	g := &Gate{allowed: make(map[Action]map[constants.UserRole]struct{})}

	chemist := []Action{ActionRequestCreate, ActionRequestUpdateChemist}
	analyst := []Action{ActionRequestClaim, ActionRequestUpdateAnalyst, ActionFileUpload, ActionFileDelete}
	anyRole := []Action{ActionRequestView, ActionFileDownload, ActionTypeView}
	adminOnly := []Action{ActionRequestExport, ActionTypeManage, ActionUserManage, ActionAuditView}

	for _, a := range chemist {
		g.allow(a, constants.RoleChemist)
	}
	for _, a := range analyst {
		g.allow(a, constants.RoleAnalyst)
	}
	for _, a := range anyRole {
		g.allow(a, constants.RoleChemist)
		g.allow(a, constants.RoleAnalyst)
	}
	for _, a := range adminOnly {
		g.allow(a) // admin-only: empty set, admin short-circuits
	}

	return g
}

func (g *Gate) allow(action Action, roles ...constants.UserRole) {
	set, ok := g.allowed[action]
	if !ok {
		set = make(map[constants.UserRole]struct{})
		g.allowed[action] = set
	}
	for _, r := range roles {
		set[r] = struct{}{}
	}
}

// Permitted reports whether the role may attempt the action. Admin satisfies
// every role predicate.
func (g *Gate) Permitted(role constants.UserRole, action Action) bool {
	if role == constants.RoleAdmin {
		return true
	}
	set, ok := g.allowed[action]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

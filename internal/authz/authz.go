// Package authz decides which role may perform privileged leave actions.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/leave-service/internal/domain"
)

// Objects and actions known to the policy.
const (
	ObjectLeaveRequest = "leave_request"
	ObjectBalance      = "balance"

	ActionSubmit  = "submit"
	ActionDecide  = "decide"
	ActionListAll = "list_all"
	ActionReadAny = "read_any"
	ActionReadOwn = "read_own"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Rule is a single allow policy line.
type Rule struct {
	Role   domain.Role
	Object string
	Action string
}

// DefaultRules grants employees their own actions and admins everything an
// employee has plus the privileged ones.
var DefaultRules = []Rule{
	{domain.RoleEmployee, ObjectLeaveRequest, ActionSubmit},
	{domain.RoleEmployee, ObjectBalance, ActionReadOwn},
	{domain.RoleAdmin, ObjectLeaveRequest, ActionDecide},
	{domain.RoleAdmin, ObjectLeaveRequest, ActionListAll},
	{domain.RoleAdmin, ObjectBalance, ActionReadAny},
}

// Authorizer wraps a casbin enforcer.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds an Authorizer from rules. Nil rules means DefaultRules.
func New(rules []Rule) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("build enforcer: %w", err)
	}
	if rules == nil {
		rules = DefaultRules
	}
	for _, r := range rules {
		if _, err := enforcer.AddPolicy(string(r.Role), r.Object, r.Action); err != nil {
			return nil, fmt.Errorf("add policy %s %s %s: %w", r.Role, r.Object, r.Action, err)
		}
	}
	if _, err := enforcer.AddGroupingPolicy(string(domain.RoleAdmin), string(domain.RoleEmployee)); err != nil {
		return nil, fmt.Errorf("add role inheritance: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Can reports whether role may perform action on object. Enforcement errors
// deny.
func (a *Authorizer) Can(role domain.Role, object, action string) bool {
	ok, err := a.enforcer.Enforce(string(role), object, action)
	return err == nil && ok
}

// Package authz decides which roles may act on admin resources.
package authz

import (
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/flicky/flashmart-api/internal/model"
)

var ErrForbidden = errors.New("admin access required")

const (
	ResourceOrder   = "order"
	ResourceCatalog = "catalog"
	ResourcePincode = "pincode"

	ActionRead  = "read"
	ActionWrite = "write"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

var defaultPolicies = [][]string{
	{model.RoleAdmin, ResourceOrder, "*"},
	{model.RoleAdmin, ResourceCatalog, "*"},
	{model.RoleAdmin, ResourcePincode, "*"},
}

type Enforcer struct {
	enforcer *casbin.Enforcer
}

// NewEnforcer builds the role policy in memory; there is no policy file.
func NewEnforcer() (*Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("init casbin enforcer: %w", err)
	}
	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return &Enforcer{enforcer: e}, nil
}

// Authorize returns ErrForbidden unless the identity's role may perform act on obj.
func (e *Enforcer) Authorize(id model.Identity, obj, act string) error {
	ok, err := e.enforcer.Enforce(id.Role(), obj, act)
	if err != nil {
		return fmt.Errorf("enforce %s %s: %w", obj, act, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

package auth

import (
	"fmt"

	"github.com/casbin/casbin"
)

// Policy answers whether a role may call a route.
type Policy struct {
	enforcer *casbin.Enforcer
}

func LoadPolicy(modelPath, policyPath string) (*Policy, error) {
	e, err := casbin.NewEnforcerSafe(modelPath, policyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load access policy: %w", err)
	}
	e.EnableLog(false)
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether role may perform method on the route pattern.
func (p *Policy) Allowed(role, route, method string) (bool, error) {
	ok, err := p.enforcer.EnforceSafe(role, route, method)
	if err != nil {
		return false, fmt.Errorf("failed to enforce access policy: %w", err)
	}
	return ok, nil
}

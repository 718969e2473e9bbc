package auth

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var casbinModelContent string

// InitEnforcer creates a casbin enforcer from the embedded model and loads one
// policy line per (role, action) pair of permissions.
// The enforcer is never mutated after this returns.
func InitEnforcer(permissions map[Role][]string) (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	rules := make([][]string, 0)
	for role, actions := range permissions {
		for _, action := range actions {
			rules = append(rules, []string{string(role), ObjectREST, action})
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i][0] != rules[j][0] {
			return rules[i][0] < rules[j][0]
		}
		return rules[i][2] < rules[j][2]
	})

	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("load role permissions: %w", err)
		}
	}

	return enforcer, nil
}

// Authorize reports whether role may perform action.
func Authorize(enforcer casbin.IEnforcer, role Role, action string) (bool, error) {
	if enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}
	if role == "" {
		return false, nil
	}
	allowed, err := enforcer.Enforce(string(role), ObjectREST, action)
	if err != nil {
		return false, fmt.Errorf("casbin enforce for role %s: %w", role, err)
	}
	return allowed, nil
}

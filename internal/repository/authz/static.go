package authz

import (
	"context"
	"fmt"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// Wildcard grants read access to every collection.
const Wildcard = "*"

// Policy lists the collections a principal may read.
type Policy struct {
	Principal   string
	Collections []string
}

// Static is a config-driven authorizer. Principals without a policy are denied.
type Static struct {
	grants          map[string]map[string]struct{}
	tenantIsolation bool
}

// NewStatic builds an authorizer from policies. With tenantIsolation, items
// carrying a tenant are readable only by principals of the same tenant.
func NewStatic(policies []Policy, tenantIsolation bool) *Static {
	grants := make(map[string]map[string]struct{}, len(policies))
	for _, p := range policies {
		set, ok := grants[p.Principal]
		if !ok {
			set = make(map[string]struct{}, len(p.Collections))
			grants[p.Principal] = set
		}
		for _, c := range p.Collections {
			set[c] = struct{}{}
		}
	}
	return &Static{grants: grants, tenantIsolation: tenantIsolation}
}

// CanRead reports whether principal may read res.
func (a *Static) CanRead(ctx context.Context, principal domain.Principal, res domain.Resource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("authorize %s %s: %w", res.Kind, res.ID, err)
	}

	switch res.Kind {
	case domain.ResourceCollection:
		return a.collectionAllowed(principal.ID, res.ID), nil
	case domain.ResourceItem:
		if !a.collectionAllowed(principal.ID, res.Collection) {
			return false, nil
		}
		if a.tenantIsolation && res.Tenant != "" && res.Tenant != principal.Tenant {
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("authorize: unknown resource kind %q", res.Kind)
	}
}

func (a *Static) collectionAllowed(principal, collection string) bool {
	set, ok := a.grants[principal]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok = set[collection]
	return ok
}

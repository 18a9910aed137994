// Package policy implements the orchestrator's should_process gate: a
// tenant allow/deny list evaluated before a message enters the react loop.
package policy

import (
	"context"
	"fmt"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// TenantGate is a reactor.PolicyGate that allows or denies a tenant by ID.
// DenyList takes precedence; an empty AllowList means "allow everyone not
// on DenyList".
type TenantGate struct {
	AllowList []string
	DenyList  []string
}

// NewTenantGate builds a gate from configured allow/deny lists.
func NewTenantGate(allow, deny []string) *TenantGate {
	return &TenantGate{AllowList: allow, DenyList: deny}
}

func (g *TenantGate) Allow(_ context.Context, tenantID string, _ models.Message) (bool, string) {
	for _, id := range g.DenyList {
		if id == tenantID {
			return false, fmt.Sprintf("tenant %q is on the deny list", tenantID)
		}
	}
	if len(g.AllowList) == 0 {
		return true, ""
	}
	for _, id := range g.AllowList {
		if id == tenantID {
			return true, ""
		}
	}
	return false, fmt.Sprintf("tenant %q is not on the allow list", tenantID)
}

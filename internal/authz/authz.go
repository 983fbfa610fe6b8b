// Package authz evaluates access decisions with an OPA rego policy.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const query = "data.tuskchat.authz.allow"

//go:embed policy.rego
var defaultPolicy string

type PolicyAuthorizer struct {
	query *rego.PreparedEvalQuery
}

// New prepares the built-in policy, or the module at policyPath when set.
func New(ctx context.Context, policyPath string) (*PolicyAuthorizer, error) {
	name, module := "policy.rego", defaultPolicy
	if policyPath != "" {
		data, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy: %w", err)
		}
		name, module = policyPath, string(data)
	}
	return NewFromModule(ctx, name, module)
}

func NewFromModule(ctx context.Context, name, module string) (*PolicyAuthorizer, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module(name, module),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy %s: %w", name, err)
	}
	return &PolicyAuthorizer{query: &prepared}, nil
}

// Authorize returns nil when the policy allows subject to perform action on
// resource, and core.ErrAuthorizationDenied otherwise.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, subject core.Subject, action string, resource map[string]any) error {
	roles := subject.Roles
	if roles == nil {
		roles = []string{}
	}
	if resource == nil {
		resource = map[string]any{}
	}

	input := map[string]any{
		"subject": map[string]any{
			"id":    subject.ID,
			"roles": roles,
		},
		"action":   action,
		"resource": resource,
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("%w: %s", core.ErrAuthorizationDenied, action)
	}
	if allowed, ok := rs[0].Expressions[0].Value.(bool); !ok || !allowed {
		log.FromCtx(ctx).Debug().
			Str("subject", subject.ID).
			Str("action", action).
			Msg("access denied")
		return fmt.Errorf("%w: %s", core.ErrAuthorizationDenied, action)
	}
	return nil
}

package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyAuthorizer_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, "")
	require.NoError(t, err)

	alice := core.Subject{ID: "alice"}
	admin := core.Subject{ID: "root", Roles: []string{"admin"}}

	tests := []struct {
		name     string
		subject  core.Subject
		action   string
		resource map[string]any
		allowed  bool
	}{
		{"owner reads own conversation", alice, core.ActionConversationAccess, map[string]any{"owner_id": "alice"}, true},
		{"other user denied", alice, core.ActionConversationAccess, map[string]any{"owner_id": "bob"}, false},
		{"admin is not an owner", admin, core.ActionConversationAccess, map[string]any{"owner_id": "alice"}, false},
		{"owner memory", alice, core.ActionMemoryAccess, map[string]any{"owner_id": "alice"}, true},
		{"admin approves", admin, core.ActionMaterialApprove, map[string]any{"id": "m1"}, true},
		{"user cannot approve", alice, core.ActionMaterialApprove, map[string]any{"id": "m1"}, false},
		{"user cannot reject", alice, core.ActionMaterialReject, nil, false},
		{"submitter withdraws pending", alice, core.ActionMaterialDelete, map[string]any{"submitted_by": "alice", "status": "pending"}, true},
		{"submitter cannot delete rejected", alice, core.ActionMaterialDelete, map[string]any{"submitted_by": "alice", "status": "rejected"}, false},
		{"admin deletes rejected", admin, core.ActionMaterialDelete, map[string]any{"submitted_by": "alice", "status": "rejected"}, true},
		{"unknown action", admin, "system.shutdown", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(ctx, tt.subject, tt.action, tt.resource)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrAuthorizationDenied)
			}
		})
	}
}

func TestPolicyAuthorizer_CustomPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.rego")
	require.NoError(t, os.WriteFile(path, []byte("package tuskchat.authz\n\nallow := true\n"), 0o644))

	a, err := New(context.Background(), path)
	require.NoError(t, err)

	assert.NoError(t, a.Authorize(context.Background(), core.Subject{ID: "anyone"}, core.ActionMaterialApprove, nil))
}

func TestPolicyAuthorizer_InvalidPolicy(t *testing.T) {
	_, err := NewFromModule(context.Background(), "broken.rego", "package x\n\nallow if {")
	assert.Error(t, err)

	_, err = New(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}

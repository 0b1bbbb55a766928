package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionFromContext(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantUser string
		wantOK   bool
	}{
		{
			name: "should return session when present in context",
			setupCtx: func() context.Context {
				session := &SessionObject{
					UserID: "c0a80101-0000-4000-8000-000000000001",
					Data:   map[string]any{"role": "admin"},
				}
				return WithSessionContext(context.Background(), session)
			},
			wantUser: "c0a80101-0000-4000-8000-000000000001",
			wantOK:   true,
		},
		{
			name: "should return false when no session in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), sessionCtxKey, "not-a-session")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			gotSession, gotOK := SessionFromContext(ctx)

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.NotNil(t, gotSession)
				assert.Equal(t, tt.wantUser, gotSession.GetUserID())
			} else {
				assert.Nil(t, gotSession)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		role     UserRole
		want     bool
	}{
		{
			name: "should match the session role",
			setupCtx: func() context.Context {
				session := &SessionObject{
					UserID: "c0a80101-0000-4000-8000-000000000001",
					Data:   map[string]any{"role": "admin"},
				}
				return WithSessionContext(context.Background(), session)
			},
			role: RoleAdmin,
			want: true,
		},
		{
			name: "should reject a different role",
			setupCtx: func() context.Context {
				session := &SessionObject{
					UserID: "c0a80101-0000-4000-8000-000000000001",
					Data:   map[string]any{"role": "member"},
				}
				return WithSessionContext(context.Background(), session)
			},
			role: RoleAdmin,
			want: false,
		},
		{
			name: "should fall back to guest when the claim is missing",
			setupCtx: func() context.Context {
				session := &SessionObject{
					UserID: "c0a80101-0000-4000-8000-000000000001",
				}
				return WithSessionContext(context.Background(), session)
			},
			role: RoleGuest,
			want: true,
		},
		{
			name: "should return false without a session",
			setupCtx: func() context.Context {
				return context.Background()
			},
			role: RoleGuest,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasRole(tt.setupCtx(), tt.role))
		})
	}
}

package authorization

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/privatedrops/internal/testutil"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db := testutil.NewDB(t)
	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAdminRoleGrantsAdminActions(t *testing.T) {
	svc := newTestService(t)
	node := testutil.NewNode(t)
	ctx := context.Background()
	admin := node.Generate()

	for _, tc := range []struct{ object, action string }{
		{ObjectUser, ActionUserList},
		{ObjectMedia, ActionMediaList},
		{ObjectMedia, ActionMediaCleanup},
		{ObjectView, ActionViewList},
	} {
		if err := svc.Authorize(ctx, admin, "admin", tc.object, tc.action); err != nil {
			t.Fatalf("admin %s/%s: %v", tc.object, tc.action, err)
		}
	}
}

func TestCreatorRoleIsDenied(t *testing.T) {
	svc := newTestService(t)
	node := testutil.NewNode(t)
	ctx := context.Background()

	err := svc.Authorize(ctx, node.Generate(), "creator", ObjectMedia, ActionMediaCleanup)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc := newTestService(t)
	node := testutil.NewNode(t)
	ctx := context.Background()
	user := node.Generate()

	if err := svc.Authorize(ctx, user, "admin", ObjectUser, ActionUserList); err != nil {
		t.Fatalf("admin: %v", err)
	}
	// A demoted user keeps no admin link.
	if err := svc.Authorize(ctx, user, "creator", ObjectUser, ActionUserList); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden after demotion, got %v", err)
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Authorize(ctx, 0, "admin", ObjectUser, ActionUserList); !errors.Is(err, ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}
	if err := svc.Authorize(ctx, 7, "admin", "", ActionUserList); !errors.Is(err, ErrInvalidObject) {
		t.Fatalf("expected ErrInvalidObject, got %v", err)
	}
}

package auth

import (
	"context"
	"testing"
)

func TestActorIsZero(t *testing.T) {
	if !(Actor{}).IsZero() {
		t.Error("expected zero actor to report IsZero")
	}
	if (Actor{Username: "tech1", Role: RoleLab}).IsZero() {
		t.Error("expected populated actor to not report IsZero")
	}
}

func TestHasRole(t *testing.T) {
	tech := Actor{Username: "tech1", Role: RoleLab}
	if !tech.HasRole(RoleLab) {
		t.Error("expected LAB actor to hold LAB")
	}
	if !tech.HasRole(RolePhlebotomy, RoleLab) {
		t.Error("expected LAB actor to match any listed role")
	}
	if tech.HasRole(RoleDoctor) {
		t.Error("expected LAB actor to not hold DOCTOR")
	}
}

func TestAdminAndSudoPassEveryCheck(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleSudo} {
		a := Actor{Username: "root", Role: role}
		if !a.HasRole(RoleDoctor) || !a.HasRole(RolePhlebotomy) {
			t.Errorf("expected %s to pass every role check", role)
		}
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	a := Actor{ID: "u1", Username: "tech1", Role: RoleLab}
	ctx := WithActor(context.Background(), a)

	got := ActorFromContext(ctx)
	if got != a {
		t.Errorf("expected actor round-tripped, got %+v", got)
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); !got.IsZero() {
		t.Errorf("expected zero actor from empty context, got %+v", got)
	}
}

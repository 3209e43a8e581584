package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/oredesk/permitflow/internal/core/domain"
)

type actorCtxKey struct{}

// actorFrom reads the authenticated identity the upstream gateway injects
// as X-Actor-ID and X-Actor-Role. ok is false when the headers are absent
// or carry an unknown role.
func actorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	id := c.Get("X-Actor-ID")
	role := c.Get("X-Actor-Role", domain.RoleApplicant)
	if id == "" {
		return domain.Actor{}, false
	}
	if role != domain.RoleApplicant && role != domain.RoleAdmin {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: role}, true
}

// withActor stores the actor for resolvers that only see a context.
func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// actorFromCtx retrieves the actor stored by withActor.
func actorFromCtx(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(domain.Actor)
	return a, ok
}

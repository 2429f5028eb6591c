package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/serializer"
	"github.com/lumenhq/dam/internal/pkg/apikey"
)

// ActorKey is the gin context key holding the authenticated *model.User.
const ActorKey = "actor"

// ActorLookup resolves an actor by the HMAC lookup of its bearer secret.
type ActorLookup interface {
	GetBySecretLookup(ctx context.Context, lookup string) (*model.User, error)
}

// ActorAuth authenticates "Authorization: Bearer <prefix><secret>" and stores the
// actor under ActorKey. The actor id is also set on the request span.
func ActorAuth(cfg *config.Config, users ActorLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := otel.Tracer("middleware").Start(c.Request.Context(), "actor_auth",
			trace.WithAttributes(attribute.String("middleware", "actor_auth")))
		defer span.End()

		deny := func() {
			span.SetAttributes(attribute.Bool("authenticated", false))
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
		}

		raw, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found {
			deny()
			return
		}
		secret, ok := apikey.Parse(strings.TrimSpace(raw), cfg.Root.BearerTokenPrefix)
		if !ok {
			deny()
			return
		}

		actor, err := users.GetBySecretLookup(ctx, apikey.Lookup(cfg.Root.SecretPepper, secret))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				deny()
				return
			}
			span.RecordError(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, serializer.DBErr("", err))
			return
		}

		if cfg.Root.EnableArgon2Verification {
			_, verify := otel.Tracer("middleware").Start(ctx, "actor_auth.verify_secret")
			pass, err := apikey.Verify(secret, cfg.Root.SecretPepper, actor.SecretKeyHashPHC)
			verify.End()
			if err != nil || !pass {
				span.SetAttributes(attribute.String("actor_id", actor.ID.String()))
				deny()
				return
			}
		}

		if root := trace.SpanFromContext(c.Request.Context()); root.SpanContext().IsValid() {
			root.SetAttributes(attribute.String("actor_id", actor.ID.String()))
		}
		span.SetAttributes(
			attribute.String("actor_id", actor.ID.String()),
			attribute.Bool("authenticated", true),
		)

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// Actor returns the authenticated actor, or nil outside ActorAuth.
func Actor(c *gin.Context) *model.User {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/pkg/apikey"
)

type fakeUsers struct {
	byLookup map[string]*model.User
	err      error
}

func (f *fakeUsers) GetBySecretLookup(_ context.Context, lookup string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byLookup[lookup]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func authConfig(argon bool) *config.Config {
	cfg := &config.Config{}
	cfg.Root.BearerTokenPrefix = "sk-dam-"
	cfg.Root.SecretPepper = "pepper"
	cfg.Root.EnableArgon2Verification = argon
	return cfg
}

func newAuthRouter(cfg *config.Config, users ActorLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ActorAuth(cfg, users))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, Actor(c).ID.String())
	})
	return r
}

func TestActorAuth(t *testing.T) {
	const secret = "s3cr3t"
	phc, err := apikey.Hash(secret, "pepper")
	require.NoError(t, err)

	actor := &model.User{ID: uuid.New(), Identifier: "root", SecretKeyHashPHC: phc}
	users := &fakeUsers{byLookup: map[string]*model.User{apikey.Lookup("pepper", secret): actor}}

	tests := []struct {
		name       string
		header     string
		argon      bool
		users      ActorLookup
		wantStatus int
	}{
		{name: "valid key", header: "Bearer sk-dam-" + secret, users: users, wantStatus: http.StatusOK},
		{name: "valid key with argon2", header: "Bearer sk-dam-" + secret, argon: true, users: users, wantStatus: http.StatusOK},
		{name: "missing header", header: "", users: users, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", users: users, wantStatus: http.StatusUnauthorized},
		{name: "wrong prefix", header: "Bearer sk-other-" + secret, users: users, wantStatus: http.StatusUnauthorized},
		{name: "unknown secret", header: "Bearer sk-dam-nope", users: users, wantStatus: http.StatusUnauthorized},
		{
			name:   "argon2 mismatch",
			header: "Bearer sk-dam-" + secret,
			argon:  true,
			users: &fakeUsers{byLookup: map[string]*model.User{
				apikey.Lookup("pepper", secret): {ID: uuid.New(), SecretKeyHashPHC: "$argon2id$broken"},
			}},
			wantStatus: http.StatusUnauthorized,
		},
		{name: "database down", header: "Bearer sk-dam-" + secret, users: &fakeUsers{err: errors.New("conn refused")}, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(authConfig(tt.argon), tt.users)
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, actor.ID.String(), w.Body.String())
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(6, 2))
	r.POST("/", func(c *gin.Context) {
		buf := make([]byte, 64)
		n, err := c.Request.Body.Read(buf)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, "%d", n)
	})

	t.Run("declared length over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4", w.Body.String())
	})
}

func TestZapLogger_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ZapLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/logging"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/store"
	"go.uber.org/zap"
)

const (
	APIKeyParam  = "apikey"
	APIKeyHeader = "X-API-Key"
)

type userCtxKey struct{}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

func UserFromCtx(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*model.User)
	return user, ok && user != nil
}

// Auth resolves the api key of the request to a user. Unknown keys are
// rejected with 401 and disabled accounts with 403.
func Auth(s store.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handler.NewHandler(logger, func(w http.ResponseWriter, r *http.Request) error {
			key := r.URL.Query().Get(APIKeyParam)
			if key == "" {
				key = r.Header.Get(APIKeyHeader)
			}

			if key == "" {
				return kerrors.New(kerrors.KindUnauthorized)
			}

			user, err := s.GetUserByAPIKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return kerrors.New(kerrors.KindUnauthorized)
				}
				return err
			}

			if user.Disabled {
				return kerrors.New(kerrors.KindDisabled)
			}

			ctx := WithUser(r.Context(), user)
			if l, err := logging.FromCtx(ctx); err == nil {
				ctx = logging.WithCtx(ctx, l.With(zap.String("user", user.ID)))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
			return nil
		})
	}
}

package e2e

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avolkov/mediatube/internal/handlers"
	"github.com/avolkov/mediatube/internal/handlers/middleware"
	"github.com/avolkov/mediatube/internal/repository"
	"github.com/avolkov/mediatube/internal/repository/mongodb"
	"github.com/avolkov/mediatube/internal/service/auth"
	"github.com/avolkov/mediatube/internal/service/auth/tokenmanager"
	"github.com/avolkov/mediatube/internal/service/user"
	"github.com/avolkov/mediatube/internal/testutil"
)

type Services struct {
	AuthService *auth.AuthService
	UserService *user.UserService
	Storage     repository.Storage
}

// Uploads resolve to fake cdn urls, no external media host in tests
type fakeUploader struct{}

func (u fakeUploader) Upload(_ context.Context, localPath string) (string, error) {
	return "https://cdn.test/" + filepath.Base(localPath), nil
}

// Serve runs an http server with the production router and services
// over an isolated database. The inner function gets the server url
// and the wired services for direct setup calls.
func Serve(mc testutil.MongoContainer, t *testing.T, fn func(srvURL string, s Services)) {
	t.Helper()

	testutil.WithDatabase(mc, t, func(database *mongo.Database) {
		storage := mongodb.NewStorage(database)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
		}, storage.User())
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
		require.NoError(t, err, "auth service starting error")

		us := user.NewService(nil, storage, fakeUploader{}, nil)

		router := handlers.NewRouter(
			handlers.NewAuth(as),
			handlers.NewUser(us),
			middleware.Auth(as),
		)

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{
			AuthService: as,
			UserService: us,
			Storage:     storage,
		})
	})
}

package testutil

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/avolkov/mediatube/internal/db"
)

type MongoContainer struct {
	URI       string
	Client    *mongo.Client
	Terminate func()
}

// Start container with mongo
// Stop if error happened, so you may be sure container started ok
// Should be stopped when tests stopped
func StartMongoContainer(t *testing.T) MongoContainer {
	t.Helper()

	// Fail if docker rootless not found
	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker rootless not available or not running. Err:%s", out)
	}

	container, err := mongodb.Run(t.Context(), "mongo:7")
	require.NoError(t, err, "Error happened when starting container with mongo, deal with it please")

	uri, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when getting connection string from container with mongo")
	t.Logf("Container with mongo started, URI=%v", uri)

	client, err := mongo.Connect(t.Context(), options.Client().ApplyURI(uri))
	require.NoError(t, err, "Error happened when connecting to mongo")
	err = client.Ping(t.Context(), readpref.Primary())
	require.NoError(t, err, "Error happened when pinging mongo")

	return MongoContainer{
		URI:    uri,
		Client: client,
		Terminate: func() {
			_ = client.Disconnect(context.Background())
			testcontainers.CleanupContainer(t, container)
		},
	}
}

// Create a uniquely named migrated database and drop it at test end
// Mongo has no rollback-friendly DDL, so isolation is one database per test
func WithDatabase(mc MongoContainer, t *testing.T, testFunc func(database *mongo.Database)) {
	t.Helper()

	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	err := db.Migrate(mc.URI, name)
	require.NoError(t, err, "Error happened when migrating test database")

	database := mc.Client.Database(name)
	defer func() {
		err := database.Drop(context.Background())
		require.NoError(t, err)
	}()

	testFunc(database)
}

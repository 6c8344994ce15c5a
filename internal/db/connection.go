package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

//go:embed migrations/*.json
var migrations embed.FS

// Run embedded migrations
// Each migration file is a list of database commands executed with runCommand,
// used here to create the unique indexes the duplicate checks rely on.
// Check the example at https://github.com/golang-migrate/migrate/blob/v4.18.1/source/iofs/example_test.go
func Migrate(uri string, dbName string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, withDatabase(uri, dbName))
	if err != nil {
		return fmt.Errorf("error while preparing migrator. Err: %w", err)
	}

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error while applying migrations. Err: %w", err)
	}

	srcErr, dbErr := migrator.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func Connect(ctx context.Context, uri string, dbName string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("can't initialize mongo client. Err: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("can't reach mongo. Err: %w", err)
	}

	return client.Database(dbName), nil
}

func ConnectAndMigrate(ctx context.Context, uri string, dbName string) (*mongo.Database, error) {
	err := Migrate(uri, dbName)
	if err != nil {
		return nil, err
	}

	return Connect(ctx, uri, dbName)
}

// golang-migrate expects the database name inside the connection string path
func withDatabase(uri string, dbName string) string {
	base, query, hasQuery := strings.Cut(uri, "?")
	base = strings.TrimSuffix(base, "/")

	dsn := base + "/" + dbName
	if hasQuery {
		dsn += "?" + query
	}
	return dsn
}

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// The booking engine relies on multi-document transactions, so the URI must
// point at a replica set (a single-node replica set is fine for development).
func ConnectDB(uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// Set context with timeout for the connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName("gym-booking").
		SetRetryWrites(true).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		// If ping fails, disconnect the client before returning the error
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection the service owns.
// Errors are returned per collection so main can log them and keep going.
func EnsureIndexes(ctx context.Context, db *mongo.Database) map[string]error {
	failures := map[string]error{}
	if err := EnsureAttendanceIndexes(ctx, db.Collection(attendanceCollectionName)); err != nil {
		failures[attendanceCollectionName] = err
	}
	if err := EnsureRosterIndexes(ctx, db.Collection(rosterCollectionName)); err != nil {
		failures[rosterCollectionName] = err
	}
	if err := EnsureUserIndexes(ctx, db.Collection(userCollectionName)); err != nil {
		failures[userCollectionName] = err
	}
	if err := EnsureClassIndexes(ctx, db.Collection(classCollectionName)); err != nil {
		failures[classCollectionName] = err
	}
	return failures
}

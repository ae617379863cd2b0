package mongo

import (
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Server-side error labels attached to transaction failures.
const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

const (
	defaultTxMaxAttempts = 5
	defaultTxRetryDelay  = 20 * time.Millisecond
	maxTxRetryDelay      = time.Second
)

// errRetryTransaction marks failures that are safe to retry from the top
// even though the server did not label them (e.g. racing roster upserts).
var errRetryTransaction = errors.New("transaction should be retried")

// mongoTransactor implements repository.Transactor with client sessions.
type mongoTransactor struct {
	client      *mongo.Client
	maxAttempts int
	retryDelay  time.Duration
	txOptions   *options.TransactionOptions
}

// NewTransactor creates a Transactor that runs each unit of work in a snapshot
// transaction with majority write concern, retrying on write conflicts.
func NewTransactor(client *mongo.Client, maxAttempts int, retryDelay time.Duration) repository.Transactor {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxMaxAttempts
	}
	if retryDelay <= 0 {
		retryDelay = defaultTxRetryDelay
	}
	return &mongoTransactor{
		client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		txOptions: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetReadPreference(readpref.Primary()),
	}
}

// WithinTransaction runs fn inside a transaction. The ctx handed to fn is a
// session context; repository calls must use it to join the transaction.
func (t *mongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.Background())

	return retryTransaction(ctx, t.maxAttempts, t.retryDelay, func(ctx context.Context) error {
		return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(t.txOptions); err != nil {
				return err
			}
			if err := fn(sc); err != nil {
				// The server may already have aborted (write conflict); ignore the abort result.
				_ = sess.AbortTransaction(context.Background())
				return err
			}
			return commitWithRetry(sc, t.maxAttempts)
		})
	})
}

// retryTransaction calls attempt until it succeeds, fails with a
// non-transient error, or maxAttempts is reached. Exhaustion is reported as
// repository.ErrTxConflict.
func retryTransaction(ctx context.Context, maxAttempts int, delay time.Duration, attempt func(ctx context.Context) error) error {
	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if i == maxAttempts {
			break
		}

		log.Printf("WARN: transaction attempt %d/%d conflicted, retrying: %v", i, maxAttempts, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(delay, i)):
		}
	}
	log.Printf("ERROR: transaction gave up after %d attempts: %v", maxAttempts, lastErr)
	return repository.ErrTxConflict
}

// commitWithRetry retries the commit itself while the outcome is unknown.
func commitWithRetry(sc mongo.SessionContext, maxAttempts int) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		err = sc.CommitTransaction(sc)
		if err == nil || !hasErrorLabel(err, labelUnknownCommitResult) {
			return err
		}
		log.Printf("WARN: commit result unknown, retrying commit: %v", err)
	}
	return err
}

func isTransient(err error) bool {
	return hasErrorLabel(err, labelTransientTransaction) || errors.Is(err, errRetryTransaction)
}

func hasErrorLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

// backoff doubles the delay per attempt, capped at maxTxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxTxRetryDelay {
			return maxTxRetryDelay
		}
	}
	return d
}

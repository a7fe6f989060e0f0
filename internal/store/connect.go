package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type ConnectOptions struct {
	URI             string
	MaxAttempts     int
	RetryDelay      time.Duration
	SelectTimeout   time.Duration
	ApplicationName string
}

// Connect opens a MongoDB client and pings the primary, retrying with a
// linear backoff of attempt*RetryDelay between attempts.
func Connect(ctx context.Context, opts ConnectOptions) (*mongo.Client, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.SelectTimeout).
		SetAppName(opts.ApplicationName)

	var client *mongo.Client
	err := withRetry(ctx, opts.MaxAttempts, opts.RetryDelay, func(attempt int) error {
		c, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			slog.Warn("mongo ping failed", "attempt", attempt, "maxAttempts", opts.MaxAttempts, "error", err)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	slog.Info("Connected to MongoDB")
	return client, nil
}

// withRetry runs fn up to attempts times, sleeping attempt*delay after each
// failure. It stops early when ctx is done.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := time.Duration(attempt) * delay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

// Package docstore keeps profiles and reports in MongoDB. It is the alternative to the postgres
// repositories, selected with DOCUMENT_STORE=mongo.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

const (
	ReportsCollection  = "reports"
	ProfilesCollection = "profiles"

	connectTimeout = 15 * time.Second
	indexTimeout   = 10 * time.Second
)

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string, log *zap.SugaredLogger) (*mongo.Client, error) {
	start := time.Now()
	log.Infow("connecting to mongo", "uri", redactURI(uri))

	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	c, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = c.Ping(dctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Infow("mongo connected", "elapsed", time.Since(start).Round(time.Millisecond))
	return c, nil
}

// EnsureIndexes creates the list indexes. Failures are collected and returned together.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	var errs []string
	reports := db.Collection(ReportsCollection)

	for name, keys := range map[string]bson.D{
		"reported_at":             {{Key: "reported_at", Value: -1}},
		"status,reported_at":      {{Key: "status", Value: 1}, {Key: "reported_at", Value: -1}},
		"reported_by,reported_at": {{Key: "reported_by", Value: 1}, {Key: "reported_at", Value: -1}},
		"assigned_to,reported_at": {{Key: "assigned_to", Value: 1}, {Key: "reported_at", Value: -1}},
	} {
		if _, err := reports.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys}); err != nil {
			errs = append(errs, name+": "+err.Error())
		}
	}

	if _, err := db.Collection(ProfilesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		errs = append(errs, "role,created_at: "+err.Error())
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("****", "****")
	return u.String()
}

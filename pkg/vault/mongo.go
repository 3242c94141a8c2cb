package vault

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/render"
)

// MongoOptions configures [NewMongoSink].
type MongoOptions struct {
	URI        string
	Database   string
	Collection string // notes; artifacts go to Collection + "_artifacts"
	RunID      string
}

// MongoSink mirrors notes and artifacts into MongoDB. Documents are upserted
// by identifier, so a collection always holds the latest run.
type MongoSink struct {
	client    *mongo.Client
	notes     replacer
	artifacts replacer
	runID     string
}

// replacer is the part of *mongo.Collection the sink writes through.
type replacer interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type noteRecord struct {
	ID        string    `bson:"_id"`
	Path      string    `bson:"path"`
	Body      string    `bson:"body"`
	RunID     string    `bson:"run_id"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type artifactRecord struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	RunID     string    `bson:"run_id"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoSink connects to MongoDB and checks the connection.
func NewMongoSink(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}
	db := client.Database(opts.Database)
	return &MongoSink{
		client:    client,
		notes:     db.Collection(opts.Collection),
		artifacts: db.Collection(opts.Collection + "_artifacts"),
		runID:     opts.RunID,
	}, nil
}

func (m *MongoSink) WriteDocument(ctx context.Context, doc *render.Document) error {
	rec := noteRecord{
		ID:        doc.Identifier,
		Path:      doc.Path,
		Body:      string(doc.Body),
		RunID:     m.runID,
		UpdatedAt: time.Now().UTC(),
	}
	return m.upsert(ctx, m.notes, rec.ID, rec, len(doc.Body))
}

func (m *MongoSink) WriteArtifact(ctx context.Context, name string, data []byte) error {
	rec := artifactRecord{ID: name, Data: data, RunID: m.runID, UpdatedAt: time.Now().UTC()}
	return m.upsert(ctx, m.artifacts, name, rec, len(data))
}

func (m *MongoSink) upsert(ctx context.Context, coll replacer, id string, rec any, size int) (err error) {
	start := time.Now()
	defer func() {
		observability.Sink().OnWrite(ctx, "mongo", size, time.Since(start), err)
	}()

	_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWrite, err, "mongo upsert %s", id)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoSink) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

var _ Sink = (*MongoSink)(nil)

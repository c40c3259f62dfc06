package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ Store = (*MongoStore)(nil)

// MongoStore implements Store with three collections: kv documents
// {_id, value}, hash documents {_id, fields}, and set documents {_id, members}.
type MongoStore struct {
	db     *mongo.Database
	kv     *mongo.Collection
	hashes *mongo.Collection
	sets   *mongo.Collection
}

// NewMongo wraps an already connected database.
func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:     db,
		kv:     db.Collection("kv"),
		hashes: db.Collection("hashes"),
		sets:   db.Collection("sets"),
	}
}

type kvDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

type hashDoc struct {
	Key    string            `bson:"_id"`
	Fields map[string]string `bson:"fields"`
}

type setDoc struct {
	Key     string   `bson:"_id"`
	Members []string `bson:"members"`
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var doc kvDoc
	err := s.kv.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	_, err := s.kv.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var doc hashDoc
	err := s.hashes.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read hash %s: %w", key, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]string{}
	}
	return doc.Fields, nil
}

func (s *MongoStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for f, v := range fields {
		set["fields."+f] = v
	}
	_, err := s.hashes.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write hash %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	path := "fields." + field
	res, err := s.hashes.UpdateOne(ctx,
		bson.M{"_id": key, path: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{path: value}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		// The filter missed because the field exists, so the upsert collided with the existing _id.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to write hash field %s: %w", field, err)
	}
	return res.ModifiedCount+res.UpsertedCount > 0, nil
}

func (s *MongoStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	unset := bson.M{}
	for _, f := range fields {
		unset["fields."+f] = ""
	}
	_, err := s.hashes.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$unset": unset})
	if err != nil {
		return fmt.Errorf("failed to delete hash fields on %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) SAdd(ctx context.Context, key, member string) (bool, error) {
	res, err := s.sets.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$addToSet": bson.M{"members": member}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add to set %s: %w", key, err)
	}
	return res.ModifiedCount+res.UpsertedCount > 0, nil
}

func (s *MongoStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	n, err := s.sets.CountDocuments(ctx, bson.M{"_id": key, "members": member})
	if err != nil {
		return false, fmt.Errorf("failed to check set %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *MongoStore) SMembers(ctx context.Context, key string) ([]string, error) {
	var doc setDoc
	err := s.sets.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list set %s: %w", key, err)
	}
	return doc.Members, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return s.db.Client().Disconnect(context.Background())
}

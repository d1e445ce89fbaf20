// Package mongo implements the storage interfaces on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nexahq/nexa-backend/internal/app/domain/calllog"
	"github.com/nexahq/nexa-backend/internal/app/domain/user"
	"github.com/nexahq/nexa-backend/internal/app/storage"
)

const (
	usersCollection    = "Users"
	callLogsCollection = "CallLogs"
	countersCollection = "Counters"

	nexaSequenceID = "nexa_id"
)

// Store persists users and call logs in MongoDB.
type Store struct {
	client   *mongo.Client
	uri      string
	users    *mongo.Collection
	callLogs *mongo.Collection
	counters *mongo.Collection
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CallLogStore = (*Store)(nil)
var _ storage.Pinger = (*Store)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		uri:      uri,
		users:    db.Collection(usersCollection),
		callLogs: db.Collection(callLogsCollection),
		counters: db.Collection(countersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// ServerInfo reports server version and connection target for health checks.
func (s *Store) ServerInfo(ctx context.Context) (map[string]string, error) {
	var info struct {
		Version string `bson:"version"`
	}
	err := s.client.Database("admin").
		RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).
		Decode(&info)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"status":     "connected",
		"version":    info.Version,
		"connection": redactURI(s.uri),
	}, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "Phone", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_phone"),
	})
	if err != nil {
		return err
	}
	_, err = s.callLogs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "Phone", Value: 1},
			{Key: "Transcript Hash", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_phone_transcript"),
	})
	return err
}

// UserStore implementation ----------------------------------------------------

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (user.User, error) {
	var u user.User
	err := s.users.FindOne(ctx, bson.M{"Phone": phone}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, fmt.Errorf("user %s: %w", phone, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastUpdated = now
	if u.Calls == nil {
		u.Calls = []user.CallEntry{}
	}

	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, fmt.Errorf("user %s: %w", u.Phone, storage.ErrDuplicate)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.LastUpdated = time.Now().UTC()

	res, err := s.users.ReplaceOne(ctx, bson.M{"Phone": u.Phone}, u)
	if err != nil {
		return user.User{}, err
	}
	if res.MatchedCount == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.Phone, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) AppendCall(ctx context.Context, phone string, entry user.CallEntry) (user.User, error) {
	now := time.Now().UTC()
	res := s.users.FindOneAndUpdate(ctx,
		bson.M{"Phone": phone},
		bson.M{
			"$push": bson.M{"Calls": entry},
			"$set":  bson.M{"Last Updated": now},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var u user.User
	err := res.Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, fmt.Errorf("user %s: %w", phone, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) NextNexaSequence(ctx context.Context) (int64, error) {
	res := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": nexaSequenceID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&counter); err != nil {
		return 0, fmt.Errorf("nexa sequence: %w", err)
	}
	return counter.Seq, nil
}

// CallLogStore implementation -------------------------------------------------

func (s *Store) CreateCallLog(ctx context.Context, log calllog.CallLog) (calllog.CallLog, error) {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	if _, err := s.callLogs.InsertOne(ctx, log); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return calllog.CallLog{}, fmt.Errorf("call log: %w", storage.ErrDuplicate)
		}
		return calllog.CallLog{}, err
	}
	return log, nil
}

func (s *Store) GetCallLog(ctx context.Context, phone, transcriptHash string) (calllog.CallLog, error) {
	var log calllog.CallLog
	err := s.callLogs.FindOne(ctx, bson.M{
		"Phone":           phone,
		"Transcript Hash": transcriptHash,
	}).Decode(&log)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return calllog.CallLog{}, fmt.Errorf("call log: %w", storage.ErrNotFound)
	}
	if err != nil {
		return calllog.CallLog{}, err
	}
	return log, nil
}

func (s *Store) MarkProcessed(ctx context.Context, phone, transcriptHash, summary string, messages []calllog.Message) (calllog.CallLog, error) {
	if messages == nil {
		messages = []calllog.Message{}
	}
	res := s.callLogs.FindOneAndUpdate(ctx,
		bson.M{"Phone": phone, "Transcript Hash": transcriptHash},
		bson.M{"$set": bson.M{
			"Call Summary": summary,
			"Messages":     messages,
			"Processed":    true,
			"Last Updated": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var log calllog.CallLog
	err := res.Decode(&log)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return calllog.CallLog{}, fmt.Errorf("call log: %w", storage.ErrNotFound)
	}
	if err != nil {
		return calllog.CallLog{}, err
	}
	return log, nil
}

func (s *Store) ListRecentCallLogs(ctx context.Context, limit int) ([]calllog.CallLog, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := s.callLogs.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "Timestamp", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []calllog.CallLog
	for cur.Next(ctx) {
		var log calllog.CallLog
		if err := cur.Decode(&log); err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, cur.Err()
}

// redactURI strips credentials from a connection string for reporting.
func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at == -1 {
		return uri
	}
	scheme := strings.Index(uri, "://")
	if scheme == -1 {
		return uri[at+1:]
	}
	return uri[:scheme+3] + uri[at+1:]
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

const (
	pollsCollection = "polls"
	votesCollection = "votes"
)

// Store is a store.Store on MongoDB. Transactions need a replica set or
// mongos; on a standalone server the first statement of a transaction fails
// and is reported as store.ErrTxUnsupported.
type Store struct {
	writer
	client *mongo.Client
	owned  bool
}

// Connect dials uri, pings the primary and prepares database dbName.
// Close disconnects the client.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect failed")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping failed")
	}
	s, err := New(ctx, client, dbName)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New uses an existing client. The caller keeps ownership of it.
func New(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	database := client.Database(dbName)
	s := &Store{
		writer: writer{
			polls: database.Collection(pollsCollection),
			votes: database.Collection(votesCollection),
			now:   time.Now,
		},
		client: client,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique (pollId, userId) index that backs the
// one-vote-per-voter rule, the listing indexes and the title/description
// text index used by search.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.votes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pollId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("poll_user_unique"),
		},
		{
			Keys: bson.D{{Key: "pollId", Value: 1}, {Key: "optionIds", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		return errors.Wrap(classify(err), "create vote indexes")
	}
	_, err = s.polls.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().SetName("poll_text"),
		},
	})
	if err != nil {
		return errors.Wrap(classify(err), "create poll indexes")
	}
	return nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(classify(err), "start session")
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, errors.Wrap(classify(err), "start transaction")
	}
	w := s.writer
	w.sess = sess
	return &Tx{writer: w, sess: sess}, nil
}

func (s *Store) CreatePoll(ctx context.Context, poll models.Poll) (models.Poll, error) {
	now := msTime(s.now())
	doc := pollDoc{
		ID:              primitive.NewObjectID(),
		Title:           poll.Title,
		Description:     poll.Description,
		CreatedBy:       poll.CreatedBy,
		Status:          string(poll.Status),
		StartsAt:        msTimePtr(poll.StartsAt),
		EndsAt:          msTimePtr(poll.EndsAt),
		ClosedAt:        msTimePtr(poll.ClosedAt),
		AllowMultiple:   poll.AllowMultiple,
		AnonymousVoting: poll.AnonymousVoting,
		Options:         make([]optionDoc, 0, len(poll.Options)),
		CreatedAt:       now,
	}
	if doc.Status == "" {
		doc.Status = string(models.StatusOpen)
	}
	if !poll.CreatedAt.IsZero() {
		doc.CreatedAt = msTime(poll.CreatedAt)
	}
	doc.UpdatedAt = doc.CreatedAt
	for _, o := range poll.Options {
		doc.Options = append(doc.Options, optionDoc{ID: primitive.NewObjectID(), Text: o.Text})
	}

	if _, err := s.polls.InsertOne(ctx, doc); err != nil {
		return models.Poll{}, errors.Wrap(classify(err), "insert poll")
	}
	return doc.model(), nil
}

func (s *Store) FindPoll(ctx context.Context, pollID string) (models.Poll, error) {
	id, err := objectID("poll", pollID)
	if err != nil {
		return models.Poll{}, err
	}
	var doc pollDoc
	if err := s.polls.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Poll{}, errors.Wrapf(classify(err), "poll %s", pollID)
	}
	return doc.model(), nil
}

// ClosePoll updates with a pipeline so an existing closedAt survives.
func (s *Store) ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error) {
	id, err := objectID("poll", pollID)
	if err != nil {
		return false, err
	}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"status":    string(models.StatusClosed),
		"closedAt":  bson.M{"$ifNull": bson.A{"$closedAt", msTime(closedAt)}},
		"updatedAt": msTime(s.now()),
	}}}}
	res, err := s.polls.UpdateOne(ctx, bson.M{"_id": id, "status": string(models.StatusOpen)}, update)
	if err != nil {
		return false, errors.Wrapf(classify(err), "close poll %s", pollID)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.polls.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrapf(classify(err), "poll %s", pollID)
	}
	if n == 0 {
		return false, errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
	}
	return false, nil
}

func (s *Store) ListPolls(ctx context.Context, filter store.ListFilter) ([]models.Poll, int, error) {
	query := bson.M{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["$text"] = bson.M{"$search": search}
	}
	if filter.Status != nil {
		now := filter.Now.UTC()
		if *filter.Status == models.StatusClosed {
			query["$or"] = bson.A{
				bson.M{"status": string(models.StatusClosed)},
				bson.M{"endsAt": bson.M{"$lte": now}},
			}
		} else {
			query["status"] = string(models.StatusOpen)
			query["$or"] = bson.A{
				bson.M{"endsAt": nil},
				bson.M{"endsAt": bson.M{"$gt": now}},
			}
		}
	}

	total, err := s.polls.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "count polls")
	}

	dir := 1
	if filter.Desc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.polls.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "list polls")
	}
	var docs []pollDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(classify(err), "decode polls")
	}
	polls := make([]models.Poll, 0, len(docs))
	for _, d := range docs {
		polls = append(polls, d.model())
	}
	return polls, int(total), nil
}

// DeletePoll removes votes then the poll, inside a transaction when the
// deployment supports one.
func (s *Store) DeletePoll(ctx context.Context, pollID string) error {
	id, err := objectID("poll", pollID)
	if err != nil {
		return err
	}

	tx, err := s.Begin(ctx)
	if err == nil {
		t := tx.(*Tx)
		err = t.deletePoll(ctx, id)
		if err == nil {
			return tx.Commit(ctx)
		}
		t.Rollback(context.WithoutCancel(ctx))
		if !errors.Is(err, store.ErrTxUnsupported) {
			return err
		}
	} else if !errors.Is(err, store.ErrTxUnsupported) {
		return err
	}
	return s.writer.deletePoll(ctx, id)
}

func (s *Store) ListVoters(ctx context.Context, pollID, optionID string, offset, limit int) ([]string, int, error) {
	pid, err := objectID("poll", pollID)
	if err != nil {
		return nil, 0, err
	}
	oid, err := objectID("option", optionID)
	if err != nil {
		return nil, 0, nil
	}
	query := bson.M{"pollId": pid, "optionIds": oid}

	total, err := s.votes.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "count voters")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"userId": 1})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.votes.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, errors.Wrap(classify(err), "list voters")
	}
	var docs []voteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(classify(err), "decode voters")
	}
	voters := make([]string, 0, len(docs))
	for _, d := range docs {
		voters = append(voters, d.UserID)
	}
	return voters, int(total), nil
}

var _ store.Store = (*Store)(nil)

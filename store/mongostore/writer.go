// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// writer runs vote and counter statements, bound to a session when sess is
// set.
type writer struct {
	polls *mongo.Collection
	votes *mongo.Collection
	now   func() time.Time
	sess  mongo.Session
}

func (w writer) bind(ctx context.Context) context.Context {
	if w.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, w.sess)
}

func (w writer) FindVote(ctx context.Context, pollID, voterID string) (models.Vote, error) {
	pid, err := objectID("poll", pollID)
	if err != nil {
		return models.Vote{}, err
	}
	var doc voteDoc
	err = w.votes.FindOne(w.bind(ctx), bson.M{"pollId": pid, "userId": voterID}).Decode(&doc)
	if err != nil {
		return models.Vote{}, errors.Wrapf(classify(err), "vote for poll %s", pollID)
	}
	return doc.model(), nil
}

func (w writer) InsertVote(ctx context.Context, vote models.Vote) (models.Vote, error) {
	if len(vote.OptionIDs) == 0 {
		return models.Vote{}, errors.New("vote needs at least one option")
	}
	pid, err := objectID("poll", vote.PollID)
	if err != nil {
		return models.Vote{}, err
	}
	oids, err := objectIDs(vote.OptionIDs)
	if err != nil {
		return models.Vote{}, err
	}
	createdAt := vote.CreatedAt
	if createdAt.IsZero() {
		createdAt = w.now()
	}
	doc := voteDoc{
		ID:        primitive.NewObjectID(),
		PollID:    pid,
		UserID:    vote.VoterID,
		OptionIDs: oids,
		Version:   1,
		CreatedAt: msTime(createdAt),
	}
	if _, err := w.votes.InsertOne(w.bind(ctx), doc); err != nil {
		return models.Vote{}, errors.Wrapf(classify(err), "insert vote for poll %s", vote.PollID)
	}
	return doc.model(), nil
}

func (w writer) ReplaceVoteOptions(ctx context.Context, voteID string, expectVersion int, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return errors.New("vote needs at least one option")
	}
	id, err := objectID("vote", voteID)
	if err != nil {
		return err
	}
	oids, err := objectIDs(optionIDs)
	if err != nil {
		return err
	}
	ctx = w.bind(ctx)
	res, err := w.votes.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectVersion},
		bson.M{"$set": bson.M{"optionIds": oids}, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return errors.Wrapf(classify(err), "replace options of vote %s", voteID)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	var doc voteDoc
	if err := w.votes.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return errors.Wrapf(classify(err), "vote %s", voteID)
	}
	return errors.Wrapf(store.ErrStaleVote, "vote %s at version %d, expected %d", voteID, doc.Version, expectVersion)
}

// IncrementCounters applies every delta in one update. Options are matched
// through array filters, one identifier per distinct delta. The query
// requires every named option to exist and no counter to go negative, so a
// rejected update changes nothing.
func (w writer) IncrementCounters(ctx context.Context, pollID string, totalDelta int, optionDeltas map[string]int) error {
	pid, err := objectID("poll", pollID)
	if err != nil {
		return err
	}

	query := bson.M{"_id": pid}
	if totalDelta < 0 {
		query["totalVotes"] = bson.M{"$gte": -totalDelta}
	}
	inc := bson.M{"totalVotes": totalDelta}
	var (
		filters []interface{}
		guards  bson.A
	)

	byDelta := map[int][]primitive.ObjectID{}
	for hex, d := range optionDeltas {
		oid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return errors.Newf("poll %s has no option %s", pollID, hex)
		}
		byDelta[d] = append(byDelta[d], oid)
		cond := bson.M{"_id": oid}
		if d < 0 {
			cond["voteCount"] = bson.M{"$gte": -d}
		}
		guards = append(guards, bson.M{"$elemMatch": cond})
	}
	deltas := make([]int, 0, len(byDelta))
	for d := range byDelta {
		deltas = append(deltas, d)
	}
	sort.Ints(deltas)
	for i, d := range deltas {
		name := fmt.Sprintf("o%d", i)
		inc[fmt.Sprintf("options.$[%s].voteCount", name)] = d
		filters = append(filters, bson.M{name + "._id": bson.M{"$in": byDelta[d]}})
	}
	if len(guards) > 0 {
		query["options"] = bson.M{"$all": guards}
	}

	opts := options.Update()
	if len(filters) > 0 {
		opts.SetArrayFilters(options.ArrayFilters{Filters: filters})
	}
	ctx = w.bind(ctx)
	res, err := w.polls.UpdateOne(ctx, query, bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": msTime(w.now())},
	}, opts)
	if err != nil {
		return errors.Wrapf(classify(err), "update counters of poll %s", pollID)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := w.polls.CountDocuments(ctx, bson.M{"_id": pid})
	if err != nil {
		return errors.Wrapf(classify(err), "poll %s", pollID)
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotFound, "poll %s", pollID)
	}
	return errors.Newf("poll %s: counter update names unknown options or goes negative", pollID)
}

func (w writer) DeleteVote(ctx context.Context, voteID string) error {
	id, err := objectID("vote", voteID)
	if err != nil {
		return err
	}
	res, err := w.votes.DeleteOne(w.bind(ctx), bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(classify(err), "delete vote %s", voteID)
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(store.ErrNotFound, "vote %s", voteID)
	}
	return nil
}

func (w writer) deletePoll(ctx context.Context, id primitive.ObjectID) error {
	ctx = w.bind(ctx)
	if _, err := w.votes.DeleteMany(ctx, bson.M{"pollId": id}); err != nil {
		return errors.Wrap(classify(err), "delete votes")
	}
	res, err := w.polls.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(classify(err), "delete poll")
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(store.ErrNotFound, "poll %s", id.Hex())
	}
	return nil
}

// Tx is a session with an open transaction.
type Tx struct {
	writer
	sess mongo.Session
	done bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	defer t.sess.EndSession(context.WithoutCancel(ctx))
	if err := t.sess.CommitTransaction(ctx); err != nil {
		return errors.Wrap(classify(err), "commit transaction")
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	defer t.sess.EndSession(ctx)
	if err := t.sess.AbortTransaction(ctx); err != nil {
		return errors.Wrap(classify(err), "abort transaction")
	}
	return nil
}

var _ store.Tx = (*Tx)(nil)

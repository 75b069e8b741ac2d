// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mongostore

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

type pollDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	Title           string             `bson:"title"`
	Description     string             `bson:"description,omitempty"`
	CreatedBy       string             `bson:"createdBy"`
	Status          string             `bson:"status"`
	StartsAt        *time.Time         `bson:"startsAt,omitempty"`
	EndsAt          *time.Time         `bson:"endsAt,omitempty"`
	ClosedAt        *time.Time         `bson:"closedAt,omitempty"`
	AllowMultiple   bool               `bson:"allowMultiple"`
	AnonymousVoting bool               `bson:"anonymousVoting"`
	Options         []optionDoc        `bson:"options"`
	TotalVotes      int                `bson:"totalVotes"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

type optionDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	VoteCount int                `bson:"voteCount"`
}

type voteDoc struct {
	ID        primitive.ObjectID   `bson:"_id"`
	PollID    primitive.ObjectID   `bson:"pollId"`
	UserID    string               `bson:"userId"`
	OptionIDs []primitive.ObjectID `bson:"optionIds"`
	Version   int                  `bson:"version"`
	CreatedAt time.Time            `bson:"createdAt"`
}

// objectID parses a hex id. Malformed ids cannot name a stored document, so
// they are reported as not found.
func objectID(kind, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(store.ErrNotFound, "%s %q", kind, hex)
	}
	return id, nil
}

func objectIDs(hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, len(hexes))
	for i, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, errors.Newf("malformed option id %q", h)
		}
		ids[i] = id
	}
	return ids, nil
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// mongo keeps millisecond precision; truncate up front so what we return
// matches what a later read returns.
func msTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func msTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := msTime(*t)
	return &v
}

func (d pollDoc) model() models.Poll {
	poll := models.Poll{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Description:     d.Description,
		CreatedBy:       d.CreatedBy,
		Status:          models.Status(d.Status),
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
		ClosedAt:        d.ClosedAt,
		AllowMultiple:   d.AllowMultiple,
		AnonymousVoting: d.AnonymousVoting,
		TotalVotes:      d.TotalVotes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, o := range d.Options {
		poll.Options = append(poll.Options, models.Option{ID: o.ID.Hex(), Text: o.Text, VoteCount: o.VoteCount})
	}
	return poll
}

func (d voteDoc) model() models.Vote {
	return models.Vote{
		ID:        d.ID.Hex(),
		PollID:    d.PollID.Hex(),
		VoterID:   d.UserID,
		OptionIDs: hexes(d.OptionIDs),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
	}
}

// Package mongo implements the engagement store on MongoDB. Likes are an array
// embedded in each message document.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultDatabase = "tweets"
	collectionName  = "messages"

	// maxRetries bounds Like when the likes field keeps being found in a
	// state $push cannot append to.
	maxRetries = 8
)

// Mongo provides storage in MongoDB.
type Mongo struct {
	coll *mongo.Collection
}

var _ store.EngagementStore = (*Mongo)(nil)

// Connect connects to the server and pings it to ensure the connection is
// working. Messages are stored in the database named in uri, or in "tweets".
func Connect(ctx context.Context, uri string) (*Mongo, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultDatabase
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, store.Unavailable("connect", fmt.Errorf("connect: %w", err))
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, store.Unavailable("connect", fmt.Errorf("ping mongo: %w", err))
	}
	return New(cli.Database(dbName).Collection(collectionName)), nil
}

// New returns a store using coll.
func New(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.coll.Database().Client().Disconnect(ctx)
}

// EnsureIndexes creates the index used by GetMessages.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userName", Value: 1},
			{Key: "createDate", Value: -1},
		},
	})
	if err != nil {
		return store.Unavailable("ensure indexes", fmt.Errorf("create index: %w", err))
	}
	return nil
}

// Save inserts the message. Its likes field is left out.
func (m *Mongo) Save(ctx context.Context, msg store.Message) error {
	_, err := m.coll.InsertOne(ctx, newMessageDocument(msg))
	if mongo.IsDuplicateKeyError(err) {
		return store.Errorf("save", store.ErrDuplicateID, err)
	}
	if err != nil {
		return store.Unavailable("save", fmt.Errorf("insert: %w", err))
	}
	return nil
}

// Like pushes a like onto the message unless the user already liked it. The
// filter on likes.userName makes the push conditional on the server, so
// concurrent calls for the same user append at most once.
func (m *Mongo) Like(ctx context.Context, messageID uuid.UUID, userName string) error {
	id := messageID.String()
	l := newLikeDocument(store.NewLike(messageID, userName))

	for range maxRetries {
		// $push fails on a null field, while a missing one is created.
		if _, err := m.coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes": bson.M{"$type": "null"}},
			bson.M{"$set": bson.M{"likes": bson.A{}}},
		); err != nil {
			return store.Unavailable("like", fmt.Errorf("normalize likes: %w", err))
		}

		res, err := m.coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes.userName": bson.M{"$ne": userName}},
			bson.M{"$push": bson.M{"likes": l}},
		)
		if isNotArray(err) {
			// Only a null written concurrently is worth another attempt;
			// any other type is a corrupt document.
			n, cerr := m.coll.CountDocuments(ctx,
				bson.M{"_id": id, "likes": bson.M{"$type": "null"}},
				options.Count().SetLimit(1),
			)
			if cerr != nil {
				return store.Unavailable("like", fmt.Errorf("count null likes: %w", cerr))
			}
			if n == 0 {
				return store.Unavailable("like", fmt.Errorf("push like: %w", err))
			}
			continue
		}
		if err != nil {
			return store.Unavailable("like", fmt.Errorf("push like: %w", err))
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// Either the message does not exist or the user already liked it.
		n, err := m.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
		if err != nil {
			return store.Unavailable("like", fmt.Errorf("count: %w", err))
		}
		if n == 0 {
			return store.Errorf("like", store.ErrNotFound, nil)
		}
		return nil
	}
	return store.Errorf("like", store.ErrConflictRetryExhausted, nil)
}

// isNotArray reports whether err is the server refusing to $push onto a field
// that is not an array.
func isNotArray(err error) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		// BadValue on older servers, TypeMismatch on newer ones.
		if e.Code == 2 || e.Code == 14 {
			return true
		}
	}
	return false
}

// Unlike pulls the like of the user. Documents without that like, including
// those without a likes array, are not matched.
func (m *Mongo) Unlike(ctx context.Context, messageID uuid.UUID, userName string) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": messageID.String(), "likes.userName": userName},
		bson.M{"$pull": bson.M{"likes": bson.M{"userName": userName}}},
	)
	if err != nil {
		return store.Unavailable("unlike", fmt.Errorf("pull like: %w", err))
	}
	return nil
}

// CountLikes returns the number of likes of the message.
func (m *Mongo) CountLikes(ctx context.Context, messageID uuid.UUID) (int, error) {
	d, err := m.find(ctx, "count likes", messageID)
	if err != nil {
		return 0, err
	}
	return len(d.Likes), nil
}

// HasLiked reports whether the user likes the message.
func (m *Mongo) HasLiked(ctx context.Context, messageID uuid.UUID, userName string) (bool, error) {
	d, err := m.find(ctx, "has liked", messageID)
	if err != nil {
		return false, err
	}
	return d.liked(userName), nil
}

func (m *Mongo) find(ctx context.Context, op string, messageID uuid.UUID) (*messageDocument, error) {
	var d messageDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": messageID.String()}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.Errorf(op, store.ErrNotFound, nil)
	}
	if err != nil {
		return nil, store.Unavailable(op, fmt.Errorf("find: %w", err))
	}
	return &d, nil
}

// GetMessages returns the messages of the user, newest first. Counts come
// from the decoded document, so each one reflects a single version of it.
func (m *Mongo) GetMessages(ctx context.Context, userName string) ([]store.UserMessage, error) {
	cur, err := m.coll.Find(ctx,
		bson.M{"userName": userName},
		options.Find().SetSort(bson.D{
			{Key: "createDate", Value: -1},
			{Key: "_id", Value: -1},
		}),
	)
	if err != nil {
		return nil, store.Unavailable("get messages", fmt.Errorf("find: %w", err))
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable("get messages", fmt.Errorf("decode: %w", err))
	}

	out := make([]store.UserMessage, len(docs))
	for i, d := range docs {
		msg, err := d.StoreMessage()
		if err != nil {
			return nil, store.Unavailable("get messages", err)
		}
		out[i] = store.UserMessage{
			Message:   msg,
			LikeCount: len(d.Likes),
			Liked:     d.liked(userName),
		}
	}
	return out, nil
}

// popularPipeline counts likes per document without unwinding them, so
// documents without likes are kept with a count of zero.
var popularPipeline = mongo.Pipeline{
	{{Key: "$addFields", Value: bson.M{
		"likeCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}},
	}}},
	{{Key: "$sort", Value: bson.D{
		{Key: "likeCount", Value: -1},
		{Key: "createDate", Value: -1},
		{Key: "_id", Value: -1},
	}}},
	{{Key: "$limit", Value: store.PopularLimit}},
	{{Key: "$project", Value: bson.M{"likes": 0}}},
}

// GetPopularMessages returns the most liked messages.
func (m *Mongo) GetPopularMessages(ctx context.Context) ([]store.PopularMessage, error) {
	cur, err := m.coll.Aggregate(ctx, popularPipeline)
	if err != nil {
		return nil, store.Unavailable("get popular messages", fmt.Errorf("aggregate: %w", err))
	}
	var docs []popularDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable("get popular messages", fmt.Errorf("decode: %w", err))
	}

	out := make([]store.PopularMessage, len(docs))
	for i, d := range docs {
		msg, err := d.Message.StoreMessage()
		if err != nil {
			return nil, store.Unavailable("get popular messages", err)
		}
		out[i] = store.PopularMessage{
			Message:   msg,
			LikeCount: d.LikeCount,
		}
	}
	return out, nil
}

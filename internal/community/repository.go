package community

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmongo"
)

// Repository is the membership store plus the community message log.
// Membership mutations are single-document updates, so each operation is
// atomic at the store without in-process locking.
type Repository interface {
	Create(ctx context.Context, c *dbmongo.Community) error
	GetByID(ctx context.Context, communityID string) (*dbmongo.Community, error)
	List(ctx context.Context) ([]*dbmongo.Community, error)
	AddMember(ctx context.Context, communityID, userID string) (*dbmongo.Community, error)
	RemoveMember(ctx context.Context, communityID, userID string) (*dbmongo.Community, error)
	AppendMessage(ctx context.Context, communityID string, msg *dbmongo.CommunityMessage) error
	ListMessages(ctx context.Context, communityID string) ([]dbmongo.CommunityMessage, *dbmongo.Community, error)
}

type communityRepo struct {
	col *mongo.Collection
}

func NewRepository(mc *dbmongo.MongoClient) Repository {
	return &communityRepo{
		col: mc.Database.Collection(dbmongo.CommunitiesCollection),
	}
}

func (r *communityRepo) Create(ctx context.Context, c *dbmongo.Community) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.Messages == nil {
		c.Messages = []dbmongo.CommunityMessage{}
	}

	_, err := r.col.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("community name %q: %w", c.Name, common.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert community: %w", err)
	}
	return nil
}

func (r *communityRepo) GetByID(ctx context.Context, communityID string) (*dbmongo.Community, error) {
	oid, err := primitive.ObjectIDFromHex(communityID)
	if err != nil {
		return nil, common.ErrNotFound
	}

	var c dbmongo.Community
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	return &c, nil
}

func (r *communityRepo) List(ctx context.Context) ([]*dbmongo.Community, error) {
	// Newest first; the embedded message log is left out of the listing.
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"messages": 0})

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer cur.Close(ctx)

	var communities []*dbmongo.Community
	if err := cur.All(ctx, &communities); err != nil {
		return nil, fmt.Errorf("decode communities: %w", err)
	}
	return communities, nil
}

// AddMember adds userID to the member set and returns the post-mutation
// document. The filter excludes communities that already contain the user,
// so the membership check and the write are one atomic operation.
func (r *communityRepo) AddMember(ctx context.Context, communityID, userID string) (*dbmongo.Community, error) {
	oid, err := primitive.ObjectIDFromHex(communityID)
	if err != nil {
		return nil, common.ErrNotFound
	}

	filter := bson.M{"_id": oid, "members": bson.M{"$ne": userID}}
	update := bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messages": 0})

	var c dbmongo.Community
	err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the community is missing or the user is already in it.
		if _, getErr := r.GetByID(ctx, communityID); getErr != nil {
			return nil, getErr
		}
		return nil, common.ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return &c, nil
}

// RemoveMember is the mirror of AddMember: the filter requires current
// membership, so a double leave reports NotMember.
func (r *communityRepo) RemoveMember(ctx context.Context, communityID, userID string) (*dbmongo.Community, error) {
	oid, err := primitive.ObjectIDFromHex(communityID)
	if err != nil {
		return nil, common.ErrNotFound
	}

	filter := bson.M{"_id": oid, "members": userID}
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messages": 0})

	var c dbmongo.Community
	err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetByID(ctx, communityID); getErr != nil {
			return nil, getErr
		}
		return nil, common.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}
	return &c, nil
}

// AppendMessage appends to the community's message log with membership as a
// precondition of the same atomic write, closing the check-then-append race:
// a sender who left is rejected by the filter, not by a separate read.
func (r *communityRepo) AppendMessage(ctx context.Context, communityID string, msg *dbmongo.CommunityMessage) error {
	oid, err := primitive.ObjectIDFromHex(communityID)
	if err != nil {
		return common.ErrNotFound
	}

	filter := bson.M{"_id": oid, "members": msg.Sender}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("append community message: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, communityID); getErr != nil {
			return getErr
		}
		return common.ErrForbidden
	}
	return nil
}

func (r *communityRepo) ListMessages(ctx context.Context, communityID string) ([]dbmongo.CommunityMessage, *dbmongo.Community, error) {
	c, err := r.GetByID(ctx, communityID)
	if err != nil {
		return nil, nil, err
	}
	return c.Messages, c, nil
}

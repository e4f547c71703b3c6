package message

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gpconnect/internal/common"
	"gpconnect/internal/dbmongo"
)

// Repository persists conversations and their direct messages. Pair
// uniqueness is enforced by the store's unique index on the normalized
// participant key, never by an in-process check: multiple server processes
// may run concurrently.
type Repository interface {
	GetOrCreateConversation(ctx context.Context, userA, userB string) (*dbmongo.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*dbmongo.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*dbmongo.Conversation, error)
	InsertMessage(ctx context.Context, msg *dbmongo.DirectMessage) error
	UpdateLastMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, at time.Time) error
	GetMessage(ctx context.Context, messageID primitive.ObjectID) (*dbmongo.DirectMessage, error)
	ListMessages(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]*dbmongo.DirectMessage, error)
	MarkRead(ctx context.Context, conversationID primitive.ObjectID, readerID string) (int64, error)
	DeleteMessage(ctx context.Context, messageID primitive.ObjectID, senderID string) error
	CountUnread(ctx context.Context, conversationID primitive.ObjectID, userID string) (int64, error)
	CountUnreadTotal(ctx context.Context, userID string) (int64, error)
}

type messageRepo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewRepository(mc *dbmongo.MongoClient) Repository {
	return &messageRepo{
		conversations: mc.Database.Collection(dbmongo.ConversationsCollection),
		messages:      mc.Database.Collection(dbmongo.MessagesCollection),
	}
}

// pairKey normalizes an unordered participant pair to the scalar the unique
// index is built on.
func pairKey(userA, userB string) (string, []string) {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":"), pair
}

// GetOrCreateConversation returns the conversation for the pair, creating it
// on first contact. Two concurrent calls for the same new pair converge on a
// single document via the unique participantsKey index: the loser's upsert
// fails with a duplicate key, and the retry matches the winner's document.
// A deactivated conversation is reactivated on contact.
func (r *messageRepo) GetOrCreateConversation(ctx context.Context, userA, userB string) (*dbmongo.Conversation, error) {
	key, pair := pairKey(userA, userB)
	now := time.Now().UTC()

	filter := bson.M{"participantsKey": key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"participants":    pair,
			"participantsKey": key,
			"lastMessageAt":   now,
			"createdAt":       now,
		},
		"$set": bson.M{
			"isActive":  true,
			"updatedAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv dbmongo.Conversation
	err := r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the insert race; the document exists now.
		err = r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return &conv, nil
}

func (r *messageRepo) GetConversation(ctx context.Context, conversationID string) (*dbmongo.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, common.ErrNotFound
	}

	var conv dbmongo.Conversation
	err = r.conversations.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

func (r *messageRepo) ListConversations(ctx context.Context, userID string) ([]*dbmongo.Conversation, error) {
	filter := bson.M{"participants": userID, "isActive": true}
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})

	cur, err := r.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cur.Close(ctx)

	var conversations []*dbmongo.Conversation
	if err := cur.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return conversations, nil
}

func (r *messageRepo) InsertMessage(ctx context.Context, msg *dbmongo.DirectMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// UpdateLastMessage refreshes the conversation's denormalized summary.
// Last-writer-wins under concurrent sends; ordering is derived from message
// createdAt, not from this field.
func (r *messageRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"lastMessageId": messageID,
		"lastMessageAt": at,
		"updatedAt":     at,
	}}
	if _, err := r.conversations.UpdateByID(ctx, conversationID, update); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	return nil
}

func (r *messageRepo) GetMessage(ctx context.Context, messageID primitive.ObjectID) (*dbmongo.DirectMessage, error) {
	var msg dbmongo.DirectMessage
	err := r.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &msg, nil
}

// ListMessages fetches one page, most recent first. The caller re-orders to
// chronological before returning to the client.
func (r *messageRepo) ListMessages(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]*dbmongo.DirectMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cur, err := r.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var messages []*dbmongo.DirectMessage
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

// MarkRead stamps every unread message from the other participant. The
// filter on isRead makes the operation idempotent: already-read messages
// keep their original readAt.
func (r *messageRepo) MarkRead(ctx context.Context, conversationID primitive.ObjectID, readerID string) (int64, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"conversationId": conversationID,
		"sender":         bson.M{"$ne": readerID},
		"isRead":         false,
	}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": now}}

	res, err := r.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.ModifiedCount, nil
}

// DeleteMessage hard-deletes, but only when the requester is the sender.
// The combined filter avoids revealing whether the message exists at all.
func (r *messageRepo) DeleteMessage(ctx context.Context, messageID primitive.ObjectID, senderID string) error {
	res, err := r.messages.DeleteOne(ctx, bson.M{"_id": messageID, "sender": senderID})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("message not found or unauthorized: %w", common.ErrNotFound)
	}
	return nil
}

func (r *messageRepo) CountUnread(ctx context.Context, conversationID primitive.ObjectID, userID string) (int64, error) {
	filter := bson.M{
		"conversationId": conversationID,
		"sender":         bson.M{"$ne": userID},
		"isRead":         false,
	}
	n, err := r.messages.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *messageRepo) CountUnreadTotal(ctx context.Context, userID string) (int64, error) {
	ids, err := r.conversations.Distinct(ctx, "_id", bson.M{"participants": userID, "isActive": true})
	if err != nil {
		return 0, fmt.Errorf("list conversation ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"conversationId": bson.M{"$in": ids},
		"sender":         bson.M{"$ne": userID},
		"isRead":         false,
	}
	n, err := r.messages.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count unread total: %w", err)
	}
	return n, nil
}

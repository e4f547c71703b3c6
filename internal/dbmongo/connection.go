package dbmongo

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gpconnect/internal/config"
)

type MongoClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoConnection(c *config.Config) (*MongoClient, error) {
	uri := c.GetMongoURI()
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database := client.Database(c.MongoDB.Database)

	mc := &MongoClient{
		Client:   client,
		Database: database,
	}

	if err := mc.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("✅ Connected to MongoDB successfully")

	return mc, nil
}

// EnsureIndexes creates the indexes the core's invariants rely on. The
// unique index on the sorted participant pair is what guarantees at most
// one conversation per unordered pair under concurrent requests.
func (mc *MongoClient) EnsureIndexes(ctx context.Context) error {
	_, err := mc.Database.Collection(CommunitiesCollection).Indexes().CreateOne(ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	if err != nil {
		return fmt.Errorf("communities name index: %w", err)
	}

	_, err = mc.Database.Collection(ConversationsCollection).Indexes().CreateMany(ctx,
		[]mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "participantsKey", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageAt", Value: -1}}},
		})
	if err != nil {
		return fmt.Errorf("conversations indexes: %w", err)
	}

	_, err = mc.Database.Collection(MessagesCollection).Indexes().CreateMany(ctx,
		[]mongo.IndexModel{
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sender", Value: 1}}},
		})
	if err != nil {
		return fmt.Errorf("direct_messages indexes: %w", err)
	}

	return nil
}

func (mc *MongoClient) Close(ctx context.Context) error {
	return mc.Client.Disconnect(ctx)
}

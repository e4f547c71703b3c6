package message

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"gpconnect/internal/config"
	"gpconnect/internal/dbmongo"
)

// Runs against a live MongoDB. Gated behind MONGO_INTEGRATION so the unit
// suite stays self-contained:
//
//	MONGO_INTEGRATION=1 go test ./internal/message/
func integrationClient(t *testing.T) *dbmongo.MongoClient {
	t.Helper()
	if os.Getenv("MONGO_INTEGRATION") == "" {
		t.Skip("set MONGO_INTEGRATION=1 to run against a live MongoDB")
	}

	cfg := &config.Config{
		MongoDB: config.MongoDBConfig{
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: os.Getenv("MONGO_USER"),
			Password: os.Getenv("MONGO_PASSWORD"),
			Database: getEnvOrDefault("MONGO_DB", "gpconnect_test"),
		},
	}

	client, err := dbmongo.NewMongoConnection(cfg)
	require.NoError(t, err, "MongoDB must be running for integration tests")
	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func TestGetOrCreateConversation_ConcurrentPair_Integration(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	conversations := client.Database.Collection(dbmongo.ConversationsCollection)
	key, _ := pairKey("it-user-a", "it-user-b")
	_, _ = conversations.DeleteMany(ctx, bson.M{"participantsKey": key})
	t.Cleanup(func() {
		conversations.DeleteMany(context.Background(), bson.M{"participantsKey": key})
	})

	repo := NewRepository(client)

	// Both sides of a brand-new pair race to create the conversation. The
	// unique participantsKey index lets only one insert through; the other
	// call must still succeed and return the same document.
	const racers = 8
	results := make([]*dbmongo.Conversation, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results[i], errs[i] = repo.GetOrCreateConversation(ctx, "it-user-a", "it-user-b")
			} else {
				results[i], errs[i] = repo.GetOrCreateConversation(ctx, "it-user-b", "it-user-a")
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i], "racer %d", i)
		require.NotNil(t, results[i], "racer %d", i)
		assert.Equal(t, results[0].ID, results[i].ID, "racer %d got a different conversation", i)
	}

	n, err := conversations.CountDocuments(ctx, bson.M{"participantsKey": key})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "exactly one conversation for the pair")
}

func TestGetOrCreateConversation_ReactivatesInactive_Integration(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	conversations := client.Database.Collection(dbmongo.ConversationsCollection)
	key, _ := pairKey("it-user-c", "it-user-d")
	_, _ = conversations.DeleteMany(ctx, bson.M{"participantsKey": key})
	t.Cleanup(func() {
		conversations.DeleteMany(context.Background(), bson.M{"participantsKey": key})
	})

	repo := NewRepository(client)

	first, err := repo.GetOrCreateConversation(ctx, "it-user-c", "it-user-d")
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	_, err = conversations.UpdateOne(ctx,
		bson.M{"_id": first.ID},
		bson.M{"$set": bson.M{"isActive": false}})
	require.NoError(t, err)

	// Contact reactivates the existing conversation instead of creating a
	// second one.
	again, err := repo.GetOrCreateConversation(ctx, "it-user-d", "it-user-c")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.IsActive)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

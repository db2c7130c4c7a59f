package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err = createIndexes(client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Queries collection indexes
	queriesCollection := db.Collection("queries")
	queryIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "query_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "subject", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	_, err := queriesCollection.Indexes().CreateMany(context.Background(), queryIndexes)
	if err != nil {
		return err
	}

	// Feedback collection indexes
	feedbackCollection := db.Collection("feedback")
	feedbackIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "query_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "rating", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	_, err = feedbackCollection.Indexes().CreateMany(context.Background(), feedbackIndexes)
	return err
}

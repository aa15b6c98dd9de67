package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"oilwise-api-server/internal/auth"
	"oilwise-api-server/internal/models"
)

// SeedPolicyReviewer makes sure an oversight account exists so the policy
// dashboard is reachable on a fresh deployment.
func SeedPolicyReviewer(db *mongo.Database) error {
	userCollection := db.Collection("users")
	reviewerEmail := "policy@oilwise.local"

	count, err := userCollection.CountDocuments(context.Background(), bson.M{"email": reviewerEmail})
	if err != nil {
		return err
	}

	if count > 0 {
		log.Println("Policy reviewer already exists. Seeding skipped.")
		return nil
	}

	log.Println("Policy reviewer not found. Seeding...")
	hashedPassword, err := auth.HashPassword("policyreviewerpassword")
	if err != nil {
		return err
	}

	reviewer := models.User{
		Email:     reviewerEmail,
		Name:      "Policy Reviewer",
		Password:  hashedPassword,
		Role:      models.RolePolicy,
		State:     "ALL",
		CreatedAt: time.Now(),
	}

	_, err = userCollection.InsertOne(context.Background(), reviewer)
	if err != nil {
		return err
	}

	log.Println("Policy reviewer seeded successfully.")
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"oilwise-api-server/internal/models"
)

const (
	requestCollection = "oil_forms"
	userCollection    = "users"
	usageCollection   = "usage_entries"
)

// retryAttempts and retryBaseDelay bound the retry loop for transient store
// failures before the caller sees ErrUnavailable.
const (
	retryAttempts  = 3
	retryBaseDelay = 100 * time.Millisecond
)

// withRetry runs op, retrying network and timeout errors with doubling
// delays. Business outcomes (no documents, duplicates) are never retried.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !mongo.IsNetworkError(err) && !mongo.IsTimeout(err) {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// MongoRequestStore implements RequestStore on the "oil_forms" collection.
type MongoRequestStore struct {
	DB *mongo.Database
}

func (s *MongoRequestStore) collection() *mongo.Collection {
	return s.DB.Collection(requestCollection)
}

func (s *MongoRequestStore) Insert(ctx context.Context, req *models.PickupRequest) error {
	return withRetry(ctx, func() error {
		result, err := s.collection().InsertOne(ctx, req)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicate
			}
			return err
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			req.ID = oid
		}
		return nil
	})
}

func (s *MongoRequestStore) FindByRequestID(ctx context.Context, requestID string) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := withRetry(ctx, func() error {
		return s.collection().FindOne(ctx, bson.M{"requestID": requestID}).Decode(&req)
	})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *MongoRequestStore) list(ctx context.Context, filter bson.M) ([]models.PickupRequest, error) {
	var requests []models.PickupRequest
	err := withRetry(ctx, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := s.collection().Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		requests = nil
		return cursor.All(ctx, &requests)
	})
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []models.PickupRequest{}
	}
	return requests, nil
}

func (s *MongoRequestStore) ListByUser(ctx context.Context, userID string) ([]models.PickupRequest, error) {
	return s.list(ctx, bson.M{"userID": userID})
}

func (s *MongoRequestStore) ListByState(ctx context.Context, state string) ([]models.PickupRequest, error) {
	return s.list(ctx, bson.M{"state": state})
}

func (s *MongoRequestStore) ListAll(ctx context.Context, status models.Status) ([]models.PickupRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.list(ctx, filter)
}

func (s *MongoRequestStore) ListStaleAssigned(ctx context.Context, cutoff time.Time) ([]models.PickupRequest, error) {
	return s.list(ctx, bson.M{
		"status":           models.StatusSubmitted,
		"ownerCollectorID": bson.M{"$ne": ""},
		"assignedAt":       bson.M{"$lt": cutoff},
	})
}

// update runs a guarded UpdateOne and reports whether the guard matched.
func (s *MongoRequestStore) update(ctx context.Context, filter, update bson.M) (bool, error) {
	var matched bool
	err := withRetry(ctx, func() error {
		result, err := s.collection().UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		matched = result.ModifiedCount > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

func (s *MongoRequestStore) MarkAccepted(ctx context.Context, requestID, collectorID string) (bool, error) {
	return s.update(ctx,
		bson.M{
			"requestID":        requestID,
			"status":           models.StatusSubmitted,
			"ownerCollectorID": collectorID,
		},
		bson.M{"$set": bson.M{
			"status":     models.StatusAccepted,
			"acceptedAt": time.Now(),
		}},
	)
}

func (s *MongoRequestStore) MarkCollected(ctx context.Context, requestID, collectorID string) (bool, error) {
	return s.update(ctx,
		bson.M{
			"requestID":        requestID,
			"status":           models.StatusAccepted,
			"ownerCollectorID": collectorID,
		},
		bson.M{"$set": bson.M{
			"status":      models.StatusCollected,
			"collectedAt": time.Now(),
		}},
	)
}

func (s *MongoRequestStore) RecordRejection(ctx context.Context, requestID, collectorID string) (bool, error) {
	return s.update(ctx,
		bson.M{
			"requestID":        requestID,
			"status":           bson.M{"$in": []models.Status{models.StatusSubmitted, models.StatusAccepted}},
			"ownerCollectorID": collectorID,
		},
		bson.M{
			"$set": bson.M{
				"status":           models.StatusSubmitted,
				"ownerCollectorID": "",
			},
			"$unset":    bson.M{"assignedAt": "", "acceptedAt": ""},
			"$addToSet": bson.M{"rejectedBy": collectorID},
		},
	)
}

func (s *MongoRequestStore) AssignIfUnassigned(ctx context.Context, requestID, collectorID string) (bool, error) {
	return s.update(ctx,
		bson.M{
			"requestID":        requestID,
			"status":           models.StatusSubmitted,
			"ownerCollectorID": "",
			"rejectedBy":       bson.M{"$ne": collectorID},
		},
		bson.M{"$set": bson.M{
			"ownerCollectorID": collectorID,
			"assignedAt":       time.Now(),
		}},
	)
}

// MongoUserStore implements UserStore on the "users" collection.
type MongoUserStore struct {
	DB *mongo.Database
}

func (s *MongoUserStore) collection() *mongo.Collection {
	return s.DB.Collection(userCollection)
}

func (s *MongoUserStore) Insert(ctx context.Context, user *models.User) error {
	return withRetry(ctx, func() error {
		result, err := s.collection().InsertOne(ctx, user)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicate
			}
			return err
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			user.ID = oid
		}
		return nil
	})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := withRetry(ctx, func() error {
		return s.collection().FindOne(ctx, filter).Decode(&user)
	})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) ListCollectorsByState(ctx context.Context, state string) ([]models.User, error) {
	var collectors []models.User
	err := withRetry(ctx, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
		cursor, err := s.collection().Find(ctx, bson.M{"role": models.RoleCollector, "state": state}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		collectors = nil
		return cursor.All(ctx, &collectors)
	})
	if err != nil {
		return nil, err
	}
	if collectors == nil {
		collectors = []models.User{}
	}
	return collectors, nil
}

func (s *MongoUserStore) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return withRetry(ctx, func() error {
		result, err := s.collection().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
			"latitude":  lat,
			"longitude": lng,
		}})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MongoUsageStore implements UsageStore on the "usage_entries" collection.
type MongoUsageStore struct {
	DB *mongo.Database
}

func (s *MongoUsageStore) collection() *mongo.Collection {
	return s.DB.Collection(usageCollection)
}

func (s *MongoUsageStore) Insert(ctx context.Context, entry *models.UsageEntry) error {
	return withRetry(ctx, func() error {
		result, err := s.collection().InsertOne(ctx, entry)
		if err != nil {
			return err
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			entry.ID = oid
		}
		return nil
	})
}

func (s *MongoUsageStore) ListByUser(ctx context.Context, userID string) ([]models.UsageEntry, error) {
	var entries []models.UsageEntry
	err := withRetry(ctx, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
		cursor, err := s.collection().Find(ctx, bson.M{"userID": userID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		entries = nil
		return cursor.All(ctx, &entries)
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.UsageEntry{}
	}
	return entries, nil
}

func (s *MongoUsageStore) SummaryByRegion(ctx context.Context) ([]models.StateUsage, []models.DistrictUsage, error) {
	var byState []models.StateUsage
	var byDistrict []models.DistrictUsage

	err := withRetry(ctx, func() error {
		statePipeline := mongo.Pipeline{
			bson.D{{Key: "$group", Value: bson.M{
				"_id":        "$state",
				"totalOilML": bson.M{"$sum": "$oilML"},
				"districts":  bson.M{"$addToSet": "$district"},
			}}},
			bson.D{{Key: "$project", Value: bson.M{
				"totalOilML":     1,
				"districtsCount": bson.M{"$size": "$districts"},
			}}},
			bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
		}
		cursor, err := s.collection().Aggregate(ctx, statePipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		byState = nil
		return cursor.All(ctx, &byState)
	})
	if err != nil {
		return nil, nil, err
	}

	err = withRetry(ctx, func() error {
		districtPipeline := mongo.Pipeline{
			bson.D{{Key: "$group", Value: bson.M{
				"_id":        bson.M{"state": "$state", "district": "$district"},
				"totalOilML": bson.M{"$sum": "$oilML"},
			}}},
			bson.D{{Key: "$project", Value: bson.M{
				"_id":        0,
				"state":      "$_id.state",
				"district":   "$_id.district",
				"totalOilML": 1,
			}}},
			bson.D{{Key: "$sort", Value: bson.M{"state": 1, "district": 1}}},
		}
		cursor, err := s.collection().Aggregate(ctx, districtPipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		byDistrict = nil
		return cursor.All(ctx, &byDistrict)
	})
	if err != nil {
		return nil, nil, err
	}

	if byState == nil {
		byState = []models.StateUsage{}
	}
	if byDistrict == nil {
		byDistrict = []models.DistrictUsage{}
	}
	return byState, byDistrict, nil
}

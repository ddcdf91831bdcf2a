package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding user documents.
const CollectionName = "users"

type userDocument struct {
	WalletAddress string    `bson:"walletAddress"`
	Nonce         string    `bson:"nonce"`
	CreatedAt     time.Time `bson:"createdAt"`
	LastLogin     time.Time `bson:"lastLogin"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		WalletAddress: d.WalletAddress,
		Nonce:         d.Nonce,
		CreatedAt:     d.CreatedAt,
		LastLogin:     d.LastLogin,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique wallet index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "walletAddress", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc := userDocument{
		WalletAddress: user.WalletAddress,
		Nonce:         user.Nonce,
		CreatedAt:     user.CreatedAt,
		LastLogin:     user.LastLogin,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrDuplicateRecord
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *MongoRepository) FindByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.M{"walletAddress": wallet}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) RotateNonce(ctx context.Context, wallet, nonce string, at time.Time) (*models.User, error) {
	update := bson.M{"$set": bson.M{"nonce": nonce, "lastLogin": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"walletAddress": wallet}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) Touch(ctx context.Context, wallet string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"walletAddress": wallet}, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select users: %w", err)
	}

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}

	result := make([]*models.User, 0, len(docs))
	for i := range docs {
		result = append(result, docs[i].toModel())
	}
	return result, total, nil
}

func (r *MongoRepository) Delete(ctx context.Context, wallet string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"walletAddress": wallet})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package uploads

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

// CollectionName is the MongoDB collection holding upload documents.
const CollectionName = "uploads"

type uploadDocument struct {
	ID            string              `bson:"id"`
	TransactionID string              `bson:"transactionId,omitempty"`
	FileName      string              `bson:"fileName"`
	FileSize      int64               `bson:"fileSize"`
	FileType      string              `bson:"fileType"`
	ContentType   string              `bson:"contentType"`
	UploadedBy    string              `bson:"uploadedBy"`
	Status        models.UploadStatus `bson:"status"`
	Cost          models.Cost         `bson:"cost"`
	Metadata      models.Metadata     `bson:"metadata"`
	PermanentURL  string              `bson:"permanentUrl,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt"`
}

func newUploadDocument(rec *models.Upload) uploadDocument {
	return uploadDocument{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		FileName:      rec.FileName,
		FileSize:      rec.FileSize,
		FileType:      rec.FileType,
		ContentType:   rec.ContentType,
		UploadedBy:    rec.UploadedBy,
		Status:        rec.Status,
		Cost:          rec.Cost,
		Metadata:      models.Metadata{Title: rec.Metadata.Title, Description: rec.Metadata.Description, Tags: nonNilTags(rec.Metadata.Tags)},
		PermanentURL:  rec.PermanentURL,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func (d *uploadDocument) toModel() *models.Upload {
	return &models.Upload{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		FileName:      d.FileName,
		FileSize:      d.FileSize,
		FileType:      d.FileType,
		ContentType:   d.ContentType,
		UploadedBy:    d.UploadedBy,
		Status:        d.Status,
		Cost:          d.Cost,
		Metadata:      d.Metadata,
		PermanentURL:  d.PermanentURL,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique id indexes and the listing/reaper indexes.
// transactionId is unique only among documents that have one.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "transactionId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"transactionId": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "uploadedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("uploads indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, rec *models.Upload) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Status = models.StatusPending

	if _, err := r.coll.InsertOne(ctx, newUploadDocument(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrDuplicateRecord
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByTransactionID(ctx context.Context, id string) (*models.Upload, error) {
	filter := bson.M{"$or": bson.A{bson.M{"id": id}, bson.M{"transactionId": id}}}

	var doc uploadDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error) {
	set := bson.M{"status": to, "updatedAt": r.now().UTC()}
	if patch.TransactionID != nil {
		set["transactionId"] = *patch.TransactionID
	}
	if patch.PermanentURL != nil {
		set["permanentUrl"] = *patch.PermanentURL
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc uploadDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, common.ErrDuplicateRecord
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("db error: %w", err)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}
	return nil, fmt.Errorf("%w: %s is not %s", common.ErrInvalidState, id, from)
}

func (r *MongoRepository) ListByWallet(ctx context.Context, wallet string, offset, limit int) ([]*models.Upload, int64, error) {
	filter := bson.M{"uploadedBy": wallet}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select uploads: %w", err)
	}

	var docs []uploadDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode uploads: %w", err)
	}

	result := make([]*models.Upload, 0, len(docs))
	for i := range docs {
		result = append(result, docs[i].toModel())
	}
	return result, total, nil
}

func (r *MongoRepository) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	filter := bson.M{"status": models.StatusProcessing, "updatedAt": bson.M{"$lt": olderThan}}
	update := bson.M{"$set": bson.M{"status": models.StatusFailed, "updatedAt": r.now().UTC()}}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.ModifiedCount, nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type PaymentRepository struct {
	coll *mongo.Collection
}

var _ application.PaymentStore = (*PaymentRepository)(nil)

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{coll: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	_, err := r.coll.InsertOne(ctx, toPaymentDocument(payment))
	if mongo.IsDuplicateKeyError(err) {
		return domain.NewDuplicateReferenceError(payment.Reference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	var doc paymentDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": reference}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewPaymentNotFoundError(reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return doc.toDomain(), nil
}

// UpdateStatusIfPending filters on status so the document-level write lock
// lets exactly one concurrent caller match.
func (r *PaymentRepository) UpdateStatusIfPending(ctx context.Context, reference string, status domain.PaymentStatus, paidAt *time.Time) (bool, error) {
	set := bson.M{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if paidAt != nil {
		set["paid_at"] = paidAt.UTC()
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": reference, "status": string(domain.StatusPending)},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *PaymentRepository) SetIssuance(ctx context.Context, reference string, issuance domain.Issuance) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": reference},
		bson.M{"$set": bson.M{
			"metadata.issuanceResult": issuance,
			"updated_at":              time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set issuance: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NewPaymentNotFoundError(reference)
	}
	return nil
}

// FindStale joins tokens so successful payments without a token are found
// regardless of age. Those come before pending payments in the batch.
func (r *PaymentRepository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"status": string(domain.StatusPending), "created_at": bson.M{"$lt": olderThan}},
			bson.M{"status": string(domain.StatusSuccess)},
		}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         tokensCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "token",
		}}},
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"status": string(domain.StatusPending)},
			bson.M{"token": bson.M{"$size": 0}},
		}}}},
		{{Key: "$addFields", Value: bson.M{"awaiting_token": bson.M{
			"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(domain.StatusSuccess)}}, 1, 0},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "awaiting_token", Value: -1}, {Key: "created_at", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"token": 0, "awaiting_token": 0}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale payments: %w", err)
	}
	defer cur.Close(ctx)

	var docs []paymentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stale payments: %w", err)
	}

	payments := make([]*domain.Payment, 0, len(docs))
	for _, d := range docs {
		payments = append(payments, d.toDomain())
	}
	return payments, nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type TokenRepository struct {
	coll *mongo.Collection
}

var _ application.TokenStore = (*TokenRepository)(nil)

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{coll: db.Collection(tokensCollection)}
}

func (r *TokenRepository) InsertIfAbsent(ctx context.Context, token *domain.Token) (*domain.Token, bool, error) {
	doc, err := toTokenDocument(token)
	if err != nil {
		return nil, false, err
	}

	_, err = r.coll.InsertOne(ctx, doc)
	if err == nil {
		stored := *token
		return &stored, true, nil
	}

	index, dup := duplicateKeyIndex(err)
	if !dup {
		return nil, false, fmt.Errorf("failed to insert token: %w", err)
	}
	if index == tokenValueIndex {
		return nil, false, domain.NewTokenCollisionError(err)
	}

	existing, err := r.FindByReference(ctx, token.Reference)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *TokenRepository) FindByReference(ctx context.Context, reference string) (*domain.Token, error) {
	return r.findOne(ctx, bson.M{"_id": reference}, reference)
}

func (r *TokenRepository) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	return r.findOne(ctx, bson.M{"token": value}, value)
}

func (r *TokenRepository) findOne(ctx context.Context, filter bson.M, key string) (*domain.Token, error) {
	var doc tokenDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewTokenNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}
	return doc.toDomain()
}

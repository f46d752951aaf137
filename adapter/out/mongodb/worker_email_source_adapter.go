package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"
	"order_worker/pkg/apperr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Order Email Source
// =============================================================================

const (
	collectionOrderEmails = "order_emails"

	// bodies above this size are stored gzip-compressed
	compressionThreshold = 1024
)

// EmailSourceAdapter implements out.EmailSource using MongoDB.
type EmailSourceAdapter struct {
	collection *mongo.Collection
}

var (
	_ out.EmailSource = (*EmailSourceAdapter)(nil)
	_ out.EmailStore  = (*EmailSourceAdapter)(nil)
)

func NewEmailSourceAdapter(db *mongo.Database) *EmailSourceAdapter {
	return &EmailSourceAdapter{collection: db.Collection(collectionOrderEmails)}
}

// EnsureIndexes creates the lookup index used by Get and ListByIDs.
func (a *EmailSourceAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "email_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type orderEmailDocument struct {
	UserID       string    `bson:"user_id"`
	EmailID      string    `bson:"email_id"`
	Subject      string    `bson:"subject"`
	From         string    `bson:"from"`
	HTML         []byte    `bson:"html"`
	Text         []byte    `bson:"text"`
	IsCompressed bool      `bson:"is_compressed"`
	ReceivedAt   time.Time `bson:"received_at"`
}

// =============================================================================
// Reads
// =============================================================================

func (a *EmailSourceAdapter) Get(ctx context.Context, userID uuid.UUID, emailID string) (*domain.EmailContent, error) {
	var doc orderEmailDocument
	filter := bson.M{"user_id": userID.String(), "email_id": emailID}

	if err := a.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("email")
		}
		return nil, fmt.Errorf("failed to get order email: %w", err)
	}
	return toEmail(&doc)
}

// ListByIDs returns the stored emails among emailIDs in request order.
// Unknown IDs are left out.
func (a *EmailSourceAdapter) ListByIDs(ctx context.Context, userID uuid.UUID, emailIDs []string) ([]domain.EmailContent, error) {
	if len(emailIDs) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"user_id":  userID.String(),
		"email_id": bson.M{"$in": emailIDs},
	}
	cursor, err := a.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list order emails: %w", err)
	}
	defer cursor.Close(ctx)

	byID := make(map[string]domain.EmailContent, len(emailIDs))
	for cursor.Next(ctx) {
		var doc orderEmailDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order email: %w", err)
		}
		email, err := toEmail(&doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert email %s: %w", doc.EmailID, err)
		}
		byID[email.ID] = *email
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return orderByRequest(emailIDs, byID), nil
}

func orderByRequest(emailIDs []string, byID map[string]domain.EmailContent) []domain.EmailContent {
	result := make([]domain.EmailContent, 0, len(byID))
	for _, id := range emailIDs {
		if e, ok := byID[id]; ok {
			result = append(result, e)
			delete(byID, id)
		}
	}
	return result
}

// =============================================================================
// Writes
// =============================================================================

// Save upserts one email keyed by (user, email id).
func (a *EmailSourceAdapter) Save(ctx context.Context, userID uuid.UUID, email *domain.EmailContent) error {
	doc, err := toDocument(userID, email)
	if err != nil {
		return fmt.Errorf("failed to convert email to document: %w", err)
	}

	filter := bson.M{"user_id": doc.UserID, "email_id": doc.EmailID}
	if _, err := a.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save order email: %w", err)
	}
	return nil
}

// =============================================================================
// Conversion Helpers
// =============================================================================

func toDocument(userID uuid.UUID, email *domain.EmailContent) (*orderEmailDocument, error) {
	htmlBytes := []byte(email.HTMLBody)
	textBytes := []byte(email.TextBody)

	isCompressed := false
	if len(htmlBytes)+len(textBytes) > compressionThreshold {
		var err error
		if htmlBytes, err = compress(htmlBytes); err != nil {
			return nil, fmt.Errorf("failed to compress HTML: %w", err)
		}
		if textBytes, err = compress(textBytes); err != nil {
			return nil, fmt.Errorf("failed to compress text: %w", err)
		}
		isCompressed = true
	}

	return &orderEmailDocument{
		UserID:       userID.String(),
		EmailID:      email.ID,
		Subject:      email.Subject,
		From:         email.From,
		HTML:         htmlBytes,
		Text:         textBytes,
		IsCompressed: isCompressed,
		ReceivedAt:   email.ReceivedAt,
	}, nil
}

func toEmail(doc *orderEmailDocument) (*domain.EmailContent, error) {
	htmlBytes, textBytes := doc.HTML, doc.Text
	if doc.IsCompressed {
		var err error
		if htmlBytes, err = decompress(doc.HTML); err != nil {
			return nil, fmt.Errorf("failed to decompress HTML: %w", err)
		}
		if textBytes, err = decompress(doc.Text); err != nil {
			return nil, fmt.Errorf("failed to decompress text: %w", err)
		}
	}

	return &domain.EmailContent{
		ID:         doc.EmailID,
		Subject:    doc.Subject,
		From:       doc.From,
		HTMLBody:   string(htmlBytes),
		TextBody:   string(textBytes),
		ReceivedAt: doc.ReceivedAt,
	}, nil
}

func compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection   = "users"
	TicketsCollection = "tickets"
)

// Store persists users and tickets in MongoDB. The two collections are
// correlated only through paymentId.
type Store struct {
	db      *mongo.Database
	users   *mongo.Collection
	tickets *mongo.Collection
	now     func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:      db,
		users:   db.Collection(UsersCollection),
		tickets: db.Collection(TicketsCollection),
		now:     time.Now,
	}
}

// EnsureIndexes creates the unique paymentId indexes that back the
// one-ticket-per-payment rule.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "paymentId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_paymentId"),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	if _, err := s.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_paymentId"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_category"),
		},
		{
			Keys:    bson.D{{Key: "emailSent", Value: 1}},
			Options: options.Index().SetName("idx_emailSent"),
		},
	}); err != nil {
		return fmt.Errorf("tickets index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	res, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return status.ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if id, ok := objectID(res.InsertedID); ok {
		user.ID = id
	}
	return nil
}

func (s *Store) FindUserByPaymentID(ctx context.Context, paymentID string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"paymentId": paymentID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, status.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// InsertTicket inserts a new ticket. A unique-index violation is reported as
// status.ErrDuplicateTicket so callers can treat it as already handled.
func (s *Store) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.now()
	}
	res, err := s.tickets.InsertOne(ctx, ticket)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return status.ErrDuplicateTicket
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	if id, ok := objectID(res.InsertedID); ok {
		ticket.ID = id
	}
	return nil
}

func (s *Store) FindTicketByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.tickets.FindOne(ctx, bson.M{"paymentId": paymentID}).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return &ticket, nil
}

func (s *Store) TicketExists(ctx context.Context, paymentID string) (bool, error) {
	n, err := s.tickets.CountDocuments(ctx, bson.M{"paymentId": paymentID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count ticket: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CountTickets(ctx context.Context) (int64, error) {
	n, err := s.tickets.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

// CountTicketsByCategory groups sold tickets by category in one round trip.
func (s *Store) CountTicketsByCategory(ctx context.Context) (map[models.Category]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Category models.Category `bson:"_id"`
		Count    int64           `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	counts := make(map[models.Category]int64, len(models.Categories))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

func (s *Store) UpdateTicketRendering(ctx context.Context, paymentID string, rendered *models.RenderedTicket) error {
	return s.updateTicket(ctx, paymentID, bson.M{
		"pdfPath":    rendered.PDFPath,
		"qrCodePath": rendered.QRCodePath,
	})
}

func (s *Store) UpdateTicketDelivery(ctx context.Context, paymentID string, update models.DeliveryUpdate) error {
	set := bson.M{
		"emailSent":     update.Sent,
		"emailAttempts": update.Attempts,
	}
	unset := bson.M{}
	if update.Sent {
		set["emailSentAt"] = update.SentAt
		set["emailMessageId"] = update.MessageID
		unset["emailError"] = ""
	} else {
		set["emailError"] = update.Error
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}

	res, err := s.tickets.UpdateOne(ctx, bson.M{"paymentId": paymentID}, doc)
	if err != nil {
		return fmt.Errorf("update ticket delivery: %w", err)
	}
	if res.MatchedCount == 0 {
		return status.ErrTicketNotFound
	}
	return nil
}

// MarkTicketScanned flips qrCodeScanned from false to true in a single
// conditional update, so two concurrent scans cannot both succeed.
func (s *Store) MarkTicketScanned(ctx context.Context, paymentID string, at time.Time) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.tickets.FindOneAndUpdate(ctx,
		bson.M{"paymentId": paymentID, "qrCodeScanned": false},
		bson.M{"$set": bson.M{"qrCodeScanned": true, "scannedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ticket)
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("scan ticket: %w", err)
	}

	exists, err := s.TicketExists(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, status.ErrTicketNotFound
	}
	return nil, status.ErrAlreadyScanned
}

// ListUndeliveredTickets returns tickets whose email was never sent, oldest
// first.
func (s *Store) ListUndeliveredTickets(ctx context.Context, limit int64) ([]models.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.tickets.Find(ctx, bson.M{"emailSent": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("find undelivered: %w", err)
	}
	defer cursor.Close(ctx)

	tickets := []models.Ticket{}
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("decode undelivered: %w", err)
	}
	return tickets, nil
}

func (s *Store) updateTicket(ctx context.Context, paymentID string, set bson.M) error {
	res, err := s.tickets.UpdateOne(ctx, bson.M{"paymentId": paymentID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if res.MatchedCount == 0 {
		return status.ErrTicketNotFound
	}
	return nil
}

func objectID(v interface{}) (primitive.ObjectID, bool) {
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

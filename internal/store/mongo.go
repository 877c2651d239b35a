package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/account-api/internal/models"
)

const usersCounterID = "users"

// emailCollation makes email matching case-insensitive, like the default
// MySQL collation. Queries must use it to hit the email index.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// MongoStore keeps accounts in the users collection. Numeric ids come from
// a sequence document in the counters collection.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	counters *mongo.Collection
}

// OpenMongo connects to uri, verifies the connection and ensures the unique
// indexes on email and cin exist.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		counters: db.Collection("counters"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_uq").SetCollation(emailCollation)},
		{Keys: bson.D{{Key: "cin", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_cin_uq")},
	})
	if err != nil {
		return fmt.Errorf("store: create mongo indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) ExistsByEmailOrCIN(ctx context.Context, email, cin string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, emailOrCINFilter(email, cin), countOne())
	if err != nil {
		return false, classifyMongo("lookup email or cin", err)
	}
	return n > 0, nil
}

func (s *MongoStore) EmailTakenByOther(ctx context.Context, email string, id int64) (bool, error) {
	n, err := s.users.CountDocuments(ctx, emailTakenByOtherFilter(email, id), countOne())
	if err != nil {
		return false, classifyMongo("lookup email", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Insert(ctx context.Context, u *models.User) (int64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}
	row := *u
	row.ID = id
	if _, err := s.users.InsertOne(ctx, row); err != nil {
		return 0, classifyMongo("insert user", err)
	}
	return id, nil
}

func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": usersCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, classifyMongo("next user id", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter, options.FindOne().SetCollation(emailCollation)).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, classifyMongo("find user", err)
	}
	return &u, nil
}

func (s *MongoStore) Update(ctx context.Context, id int64, upd models.UserUpdate) error {
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, updateDocument(upd)); err != nil {
		return classifyMongo("update user", err)
	}
	return nil
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, passwordDocument(hash)); err != nil {
		return classifyMongo("update password", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return classifyMongo("delete user", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func countOne() *options.CountOptions {
	return options.Count().SetLimit(1).SetCollation(emailCollation)
}

func emailOrCINFilter(email, cin string) bson.M {
	return bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"cin": cin}}}
}

func emailTakenByOtherFilter(email string, id int64) bson.M {
	return bson.M{"email": email, "_id": bson.M{"$ne": id}}
}

func updateDocument(upd models.UserUpdate) bson.M {
	set := bson.M{
		"firstName":   upd.FirstName,
		"lastName":    upd.LastName,
		"email":       upd.Email,
		"phoneNumber": upd.PhoneNumber,
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}
	return bson.M{"$set": set}
}

func passwordDocument(hash string) bson.M {
	return bson.M{"$set": bson.M{"password": hash}}
}

func classifyMongo(op string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s: %v", ErrDuplicate, op, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	default:
		return fmt.Errorf("store: %s: %w", op, err)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-crm/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection         = "users"
	bootstrapCollection     = "bootstrap"
	notificationsCollection = "notification_settings"
)

// userDocument is the MongoDB shape of models.User. Field names follow the
// existing users collection. IDs are ObjectIDs in the database and hex strings
// everywhere else.
type userDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	Email          string             `bson:"email"`
	Name           string             `bson:"name"`
	PasswordHash   string             `bson:"password,omitempty"`
	Role           models.Role        `bson:"role"`
	FirstName      string             `bson:"firstName,omitempty"`
	LastName       string             `bson:"lastName,omitempty"`
	JobTitle       string             `bson:"jobTitle,omitempty"`
	Phone          string             `bson:"phone,omitempty"`
	Timezone       string             `bson:"timezone"`
	Language       string             `bson:"language"`
	ProfileImage   string             `bson:"profileImage,omitempty"`
	Active         bool               `bson:"active"`
	LastLogin      *time.Time         `bson:"lastLogin,omitempty"`
	SessionVersion int                `bson:"sessionVersion"`
}

// documentFields renames the SQL columns of a profile update to their
// document field names.
var documentFields = map[string]string{
	"first_name":    "firstName",
	"last_name":     "lastName",
	"job_title":     "jobTitle",
	"profile_image": "profileImage",
}

func (d *userDocument) user() *models.User {
	return &models.User{
		ID:             d.ID.Hex(),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Email:          d.Email,
		Name:           d.Name,
		PasswordHash:   d.PasswordHash,
		Role:           d.Role,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		JobTitle:       d.JobTitle,
		Phone:          d.Phone,
		Timezone:       d.Timezone,
		Language:       d.Language,
		ProfileImage:   d.ProfileImage,
		Active:         d.Active,
		LastLogin:      d.LastLogin,
		SessionVersion: d.SessionVersion,
	}
}

type bootstrapDocument struct {
	Name      string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ClaimedAt time.Time `bson:"claimed_at"`
}

// MongoStore is the document-database credential store.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

func (s *MongoStore) users() *mongo.Collection { return s.db.Collection(usersCollection) }

// EnsureIndexes creates the unique email index. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("store.EnsureIndexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "store.FindByEmail", bson.M{"email": models.NormalizeEmail(email)})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "store.FindByID", bson.M{"_id": oid})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongo(op, err)
	}
	return doc.user(), nil
}

// Create inserts the identity. Email uniqueness is checked before the insert
// and backed by the email index; the first-admin promotion is decided by
// inserting the fixed bootstrap document, which only one concurrent caller can do.
func (s *MongoStore) Create(ctx context.Context, in NewIdentity) (*models.User, error) {
	const op = "store.Create"

	now := s.now().UTC()
	u := models.User{
		ID:           primitive.NewObjectIDFromTimestamp(now).Hex(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        models.NormalizeEmail(in.Email),
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       true,
	}
	u.ApplyDefaults()

	if err := s.emailTaken(ctx, u.Email, primitive.NilObjectID); err != nil {
		return nil, translateMongo(op, err)
	}

	claimed := false
	if in.Role == "" {
		var err error
		if claimed, err = s.claimFirstAdmin(ctx, u.ID); err != nil {
			return nil, translateMongo(op, err)
		}
		if claimed {
			u.Role = models.RoleAdmin
		}
	}

	if _, err := s.users().InsertOne(ctx, toDocument(&u)); err != nil {
		if claimed {
			// release the claim so the next registrant can still become admin
			_, _ = s.db.Collection(bootstrapCollection).DeleteOne(ctx, bson.M{"_id": models.FirstAdminClaim})
		}
		return nil, translateMongo(op, err)
	}
	return withoutHash(&u), nil
}

func (s *MongoStore) claimFirstAdmin(ctx context.Context, userID string) (bool, error) {
	n, err := s.users().CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.db.Collection(bootstrapCollection).InsertOne(ctx, bootstrapDocument{
		Name:      models.FirstAdminClaim,
		UserID:    userID,
		ClaimedAt: s.now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// emailTaken reports ErrDuplicateIdentity when another document holds email.
func (s *MongoStore) emailTaken(ctx context.Context, email string, self primitive.ObjectID) error {
	filter := bson.M{"email": email}
	if !self.IsZero() {
		filter["_id"] = bson.M{"$ne": self}
	}
	err := s.users().FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	case err != nil:
		return err
	}
	return ErrDuplicateIdentity
}

func toDocument(u *models.User) *userDocument {
	oid, _ := primitive.ObjectIDFromHex(u.ID)
	return &userDocument{
		ID:             oid,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		Email:          u.Email,
		Name:           u.Name,
		PasswordHash:   u.PasswordHash,
		Role:           u.Role,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		JobTitle:       u.JobTitle,
		Phone:          u.Phone,
		Timezone:       u.Timezone,
		Language:       u.Language,
		ProfileImage:   u.ProfileImage,
		Active:         u.Active,
		LastLogin:      u.LastLogin,
		SessionVersion: u.SessionVersion,
	}
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "store.UpdateProfile"

	cols := upd.Columns()
	if len(cols) == 0 {
		return s.FindByID(ctx, id)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	if email, ok := cols["email"].(string); ok {
		if err := s.emailTaken(ctx, email, oid); err != nil {
			return nil, translateMongo(op, err)
		}
	}
	set := bson.M{"updatedAt": s.now().UTC()}
	for k, v := range cols {
		if f, ok := documentFields[k]; ok {
			k = f
		}
		set[k] = v
	}
	return s.findOneAndUpdate(ctx, op, id, bson.M{"$set": set})
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, op, id string, update bson.M) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc userDocument
	err = s.users().FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, translateMongo(op, err)
	}
	return doc.user(), nil
}

func (s *MongoStore) set(ctx context.Context, op, id string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	fields["updatedAt"] = s.now().UTC()
	res, err := s.users().UpdateByID(ctx, oid, bson.M{"$set": fields})
	if err != nil {
		return translateMongo(op, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.set(ctx, "store.UpdatePassword", id, bson.M{"password": hash})
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.set(ctx, "store.TouchLastLogin", id, bson.M{"lastLogin": at})
}

func (s *MongoStore) SetRole(ctx context.Context, id string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("store.SetRole: invalid role %q", role)
	}
	return s.set(ctx, "store.SetRole", id, bson.M{"role": role})
}

func (s *MongoStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.set(ctx, "store.SetActive", id, bson.M{"active": active})
}

func (s *MongoStore) BumpSessionVersion(ctx context.Context, id string) (int, error) {
	u, err := s.findOneAndUpdate(ctx, "store.BumpSessionVersion", id, bson.M{"$inc": bson.M{"sessionVersion": 1}})
	if err != nil {
		return 0, err
	}
	return u.SessionVersion, nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.User, error) {
	const op = "store.List"

	cur, err := s.users().Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, translateMongo(op, err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateMongo(op, err)
	}
	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].user())
	}
	return users, nil
}

func (s *MongoStore) NotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	const op = "store.NotificationSettings"

	var ns models.NotificationSettings
	err := s.db.Collection(notificationsCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&ns)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultNotificationSettings(userID), nil
	}
	if err != nil {
		return nil, translateMongo(op, err)
	}
	return &ns, nil
}

func (s *MongoStore) SaveNotificationSettings(ctx context.Context, ns *models.NotificationSettings) error {
	const op = "store.SaveNotificationSettings"

	ns.UpdatedAt = s.now().UTC()
	_, err := s.db.Collection(notificationsCollection).ReplaceOne(ctx, bson.M{"_id": ns.UserID}, ns,
		options.Replace().SetUpsert(true))
	if err != nil {
		return translateMongo(op, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("store.Ping: %w", err)
	}
	return nil
}

func translateMongo(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err), errors.Is(err, ErrDuplicateIdentity):
		return ErrDuplicateIdentity
	}
	return fmt.Errorf("%s: %w", op, err)
}

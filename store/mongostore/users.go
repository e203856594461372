package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email"`
	Password       string             `bson:"password,omitempty"`
	AuthMethod     string             `bson:"authMethod"`
	Role           string             `bson:"role"`
	Status         string             `bson:"status"`
	EmailVerified  bool               `bson:"emailVerified"`
	ProfilePicture string             `bson:"profilePicture,omitempty"`
	RefreshTokens  []string           `bson:"refreshTokens"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d *userDoc) toUser() *account.User {
	return &account.User{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Email:          d.Email,
		PasswordHash:   d.Password,
		AuthMethod:     account.AuthMethod(d.AuthMethod),
		Role:           account.Role(d.Role),
		Status:         account.Status(d.Status),
		EmailVerified:  d.EmailVerified,
		ProfilePicture: d.ProfilePicture,
		RefreshTokens:  d.RefreshTokens,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromUser(u *account.User) (*userDoc, error) {
	d := &userDoc{
		Username:       u.Username,
		Email:          account.NormalizeEmail(u.Email),
		Password:       u.PasswordHash,
		AuthMethod:     string(u.AuthMethod),
		Role:           string(u.Role),
		Status:         string(u.Status),
		EmailVerified:  u.EmailVerified,
		ProfilePicture: u.ProfilePicture,
		RefreshTokens:  u.RefreshTokens,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if d.RefreshTokens == nil {
		d.RefreshTokens = []string{}
	}
	if u.ID != "" {
		oid, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", u.ID, err)
		}
		d.ID = oid
	}
	return d, nil
}

var hiddenProjection = bson.M{"password": 0, "refreshTokens": 0}

// Users is a MongoDB-backed account.CredentialStore.
type Users struct {
	coll   *mongo.Collection
	hasher account.PasswordHasher
	now    func() time.Time
}

// NewUsers wraps the users collection of db.
func NewUsers(db *mongo.Database, h account.PasswordHasher) *Users {
	return &Users{coll: db.Collection(UsersCollection), hasher: h, now: time.Now}
}

func (s *Users) findOne(ctx context.Context, filter bson.M, withHidden bool) (*account.User, error) {
	opts := options.FindOne()
	if !withHidden {
		opts.SetProjection(hiddenProjection)
	}
	var d userDoc
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return d.toUser(), nil
}

func (s *Users) FindByEmail(ctx context.Context, email string, withHidden bool) (*account.User, error) {
	return s.findOne(ctx, bson.M{"email": account.NormalizeEmail(email)}, withHidden)
}

func (s *Users) FindByID(ctx context.Context, id string, withHidden bool) (*account.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, account.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid}, withHidden)
}

func (s *Users) Create(ctx context.Context, u *account.User) error {
	if err := account.PreparePassword(s.hasher, u); err != nil {
		return err
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	d, err := fromUser(u)
	if err != nil {
		return err
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}

	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = d.ID.Hex()
	u.Email = d.Email
	return nil
}

func (s *Users) Save(ctx context.Context, u *account.User) error {
	if err := account.PreparePassword(s.hasher, u); err != nil {
		return err
	}
	u.UpdatedAt = s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = u.UpdatedAt
	}

	d, err := fromUser(u)
	if err != nil {
		return err
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": d.ID}, d, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrDuplicate
		}
		return fmt.Errorf("save user: %w", err)
	}
	u.ID = d.ID.Hex()
	return nil
}

func (s *Users) UpdateByID(ctx context.Context, id string, patch account.UserPatch) (*account.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, account.ErrNotFound
	}

	set := bson.M{"updatedAt": s.now().UTC()}
	if patch.Password != nil {
		cur, err := s.findOne(ctx, bson.M{"_id": oid}, true)
		if err != nil {
			return nil, err
		}
		patch.Apply(cur)
		if err := account.PreparePassword(s.hasher, cur); err != nil {
			return nil, err
		}
		set["password"] = cur.PasswordHash
	}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.EmailVerified != nil {
		set["emailVerified"] = *patch.EmailVerified
	}
	if patch.ProfilePicture != nil {
		set["profilePicture"] = *patch.ProfilePicture
	}
	if patch.RefreshTokens != nil {
		set["refreshTokens"] = *patch.RefreshTokens
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(hiddenProjection)
	var d userDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return d.toUser(), nil
}

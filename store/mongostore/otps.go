package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type otpDoc struct {
	Email     string    `bson:"email"`
	OTP       string    `bson:"otp"`
	Count     int       `bson:"count"`
	CreatedAt time.Time `bson:"createdAt"`
}

// OTPs is a MongoDB-backed account.OTPStore.
type OTPs struct {
	coll   *mongo.Collection
	mailer account.Mailer
	now    func() time.Time
}

// NewOTPs wraps the otps collection of db and mails codes through m.
func NewOTPs(db *mongo.Database, m account.Mailer) *OTPs {
	return &OTPs{coll: db.Collection(OTPCollection), mailer: m, now: time.Now}
}

func (s *OTPs) filter(email, code string) bson.M {
	f := bson.M{
		"email":     account.NormalizeEmail(email),
		"createdAt": bson.M{"$gt": s.now().UTC().Add(-account.OTPTTL)},
	}
	if code != "" {
		f["otp"] = code
	}
	return f
}

func (s *OTPs) FindOne(ctx context.Context, email, code string) (*account.OTPRecord, error) {
	var d otpDoc
	if err := s.coll.FindOne(ctx, s.filter(email, code)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return &account.OTPRecord{Email: d.Email, Code: d.OTP, Count: d.Count, CreatedAt: d.CreatedAt}, nil
}

func (s *OTPs) Create(ctx context.Context, rec *account.OTPRecord) error {
	if rec.Count > account.MaxOTPCount {
		return account.ErrCountExceeded
	}
	if err := account.DispatchOTP(ctx, s.mailer, rec); err != nil {
		return err
	}

	// An expired record the TTL monitor has not reaped yet would trip the
	// unique index.
	email := account.NormalizeEmail(rec.Email)
	_, _ = s.coll.DeleteOne(ctx, bson.M{
		"email":     email,
		"createdAt": bson.M{"$lte": s.now().UTC().Add(-account.OTPTTL)},
	})

	d := otpDoc{Email: email, OTP: rec.Code, Count: rec.Count, CreatedAt: s.now().UTC()}
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrDuplicate
		}
		return fmt.Errorf("insert otp: %w", err)
	}
	rec.CreatedAt = d.CreatedAt
	return nil
}

func (s *OTPs) Save(ctx context.Context, rec *account.OTPRecord) error {
	if rec.Count > account.MaxOTPCount {
		return account.ErrCountExceeded
	}
	if err := account.DispatchOTP(ctx, s.mailer, rec); err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx, s.filter(rec.Email, ""), bson.M{
		"$set": bson.M{"otp": rec.Code, "count": rec.Count},
	})
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	if res.MatchedCount == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *OTPs) DeleteOne(ctx context.Context, email, code string) error {
	f := bson.M{"email": account.NormalizeEmail(email)}
	if code != "" {
		f["otp"] = code
	}
	if _, err := s.coll.DeleteOne(ctx, f); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

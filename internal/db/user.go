package db

import (
	"context"
	"strings"
	"time"

	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user into the database
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = normalizeEmail(user.Email)

	_, err := c.Collection.InsertOne(ctx, user)
	return translate(err)
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var user models.User
	if err := c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var user models.User
	if err := c.Collection.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUsers lists users, optionally restricted to one role
func (c *MongoUserCollection) FindUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_name", Value: 1}, {Key: "first_name", Value: 1}})
	return findAll[models.User](ctx, c.Collection, filter, opts)
}

// UpdateUser replaces a user's profile fields. Password and role have
// dedicated updates.
func (c *MongoUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	return c.set(ctx, id, bson.M{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"phone":      user.Phone,
		"email":      normalizeEmail(user.Email),
	})
}

// UpdatePassword stores a new hash and the temporary-password flag
func (c *MongoUserCollection) UpdatePassword(ctx context.Context, id, passwordHash string, temporary bool) error {
	return c.set(ctx, id, bson.M{"password_hash": passwordHash, "temporary_password": temporary})
}

// UpdateRole changes a user's role
func (c *MongoUserCollection) UpdateRole(ctx context.Context, id string, role models.Role) error {
	return c.set(ctx, id, bson.M{"role": role})
}

// DeleteUser deletes a user from the database
func (c *MongoUserCollection) DeleteUser(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	return c.set(ctx, id, bson.M{"last_login": time.Now()})
}

// GetRole returns the role stored on the user document
func (c *MongoUserCollection) GetRole(ctx context.Context, id string) (models.Role, error) {
	if c.Collection == nil {
		return "", ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", ErrNotFound
	}

	var doc struct {
		Role models.Role `bson:"role"`
	}
	opts := options.FindOne().SetProjection(bson.M{"role": 1})
	if err := c.Collection.FindOne(ctx, bson.M{"_id": objectID}, opts).Decode(&doc); err != nil {
		return "", translate(err)
	}
	if doc.Role == "" {
		return "", ErrNotFound
	}
	return doc.Role, nil
}

func (c *MongoUserCollection) set(ctx context.Context, id string, fields bson.M) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	fields["updated_at"] = time.Now()
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": fields})
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

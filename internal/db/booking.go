package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingCollection implements BookingCollection for MongoDB
type MongoBookingCollection struct {
	Collection *mongo.Collection
}

// InsertBooking inserts a booking record into the collection.
func (c *MongoBookingCollection) InsertBooking(ctx context.Context, booking models.Booking) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, booking)
	return translate(err)
}

// FindBookingByID finds a booking by its ID.
func (c *MongoBookingCollection) FindBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var booking models.Booking
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

// FindBookings lists every booking, newest trip first.
func (c *MongoBookingCollection) FindBookings(ctx context.Context) ([]models.Booking, error) {
	return findAll[models.Booking](ctx, c.Collection, bson.M{}, newestFirst())
}

// FindBookingsByUser lists the bookings a staff member made.
func (c *MongoBookingCollection) FindBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return findAll[models.Booking](ctx, c.Collection, bson.M{"booked_by": userID}, newestFirst())
}

// FindBookingsByVehicle lists the bookings that reference a vehicle.
func (c *MongoBookingCollection) FindBookingsByVehicle(ctx context.Context, vehicleID string) ([]models.Booking, error) {
	return findAll[models.Booking](ctx, c.Collection, bson.M{"vehicle": vehicleID}, newestFirst())
}

// UpdateBooking applies the non-nil fields and returns the updated booking.
func (c *MongoBookingCollection) UpdateBooking(ctx context.Context, id string, fields BookingUpdate) (*models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	set := bson.M{"updated_at": time.Now()}
	if fields.BookingStatus != nil {
		set["booking_status"] = *fields.BookingStatus
	}
	if fields.KeyCollectionStatus != nil {
		set["key_collection_status"] = *fields.KeyCollectionStatus
	}
	if fields.KeyReturnStatus != nil {
		set["key_return_status"] = *fields.KeyReturnStatus
	}
	if fields.RejectionReason != nil {
		set["rejection_reason"] = *fields.RejectionReason
	}
	if fields.ManagedBy != nil {
		set["managed_by"] = *fields.ManagedBy
	}
	if fields.ApprovedBy != nil {
		set["approved_by"] = *fields.ApprovedBy
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking models.Booking
	err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&booking)
	if err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "booking_date", Value: -1}})
}

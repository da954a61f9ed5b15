package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoInspectionCollection implements InspectionCollection for MongoDB
type MongoInspectionCollection struct {
	Collection *mongo.Collection
}

// InsertInspection inserts an inspection. A second form of the same type for
// one booking is rejected by the unique index with ErrDuplicate.
func (c *MongoInspectionCollection) InsertInspection(ctx context.Context, inspection models.Inspection) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	inspection.CreatedAt = now
	inspection.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, inspection)
	return translate(err)
}

// FindInspectionsByBooking lists the inspections submitted for one booking.
func (c *MongoInspectionCollection) FindInspectionsByBooking(ctx context.Context, bookingID string) ([]models.Inspection, error) {
	return findAll[models.Inspection](ctx, c.Collection, bson.M{"booking": bookingID}, byInspectionDate())
}

// FindInspectionsByBookings lists the inspections of any of the bookings.
func (c *MongoInspectionCollection) FindInspectionsByBookings(ctx context.Context, bookingIDs []string) ([]models.Inspection, error) {
	if len(bookingIDs) == 0 {
		return []models.Inspection{}, nil
	}
	return findAll[models.Inspection](ctx, c.Collection, bson.M{"booking": bson.M{"$in": bookingIDs}}, byInspectionDate())
}

func byInspectionDate() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "inspection_date", Value: 1}})
}

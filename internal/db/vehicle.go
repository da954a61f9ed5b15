package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVehicleCollection implements VehicleCollection for MongoDB
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, vehicle)
	return translate(err)
}

// FindVehicles lists the roster ordered by plate number.
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "plate_number", Value: 1}})
	return findAll[models.Vehicle](ctx, c.Collection, bson.M{}, opts)
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var vehicle models.Vehicle
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle); err != nil {
		return nil, translate(err)
	}
	return &vehicle, nil
}

// UpdateVehicle updates the descriptive fields of a vehicle.
func (c *MongoVehicleCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error {
	return c.set(ctx, id, bson.M{
		"plate_number":  vehicle.PlateNumber,
		"brand":         vehicle.Brand,
		"model":         vehicle.Model,
		"year":          vehicle.Year,
		"type":          vehicle.Type,
		"fuel_type":     vehicle.FuelType,
		"seat_capacity": vehicle.SeatCapacity,
	})
}

// SetManualMaintenance toggles the admin maintenance override.
func (c *MongoVehicleCollection) SetManualMaintenance(ctx context.Context, id string, enabled bool) error {
	return c.set(ctx, id, bson.M{"manual_maintenance": enabled, "maintenance_status": enabled})
}

// DeleteVehicle deletes a vehicle by its ID.
func (c *MongoVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MongoVehicleCollection) set(ctx context.Context, id string, fields bson.M) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	fields["updated_at"] = time.Now()
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

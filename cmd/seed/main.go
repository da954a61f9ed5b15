// Command seed creates the first Admin account and a sample vehicle roster.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/config"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/models"
)

var (
	brands = map[string][]string{
		"Petrol": {"Toyota", "Honda", "Ford", "Mitsubishi", "Nissan"},
		"Diesel": {"Toyota", "Isuzu", "Ford", "Hyundai"},
		"EV":     {"Tesla", "Nissan", "BYD", "Hyundai"},
	}
	modelsByBrand = map[string][]string{
		"Toyota":     {"Vios", "Hiace", "Innova", "Hilux"},
		"Honda":      {"City", "CR-V"},
		"Ford":       {"Ranger", "Everest", "Transit"},
		"Mitsubishi": {"Montero", "L300"},
		"Nissan":     {"Navara", "Urvan", "Leaf"},
		"Isuzu":      {"D-Max", "Traviz"},
		"Hyundai":    {"Starex", "Kona Electric"},
		"Tesla":      {"Model 3", "Model Y"},
		"BYD":        {"Atto 3", "e6"},
	}
	seatsByType = map[string]int{"Car": 5, "Van": 12, "Truck": 3}
	fuelTypes   = []string{"Petrol", "Diesel", "EV"}
	bodyTypes   = []string{"Car", "Van", "Truck"}
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	adminEmail := os.Getenv("SEED_ADMIN_EMAIL")
	if adminEmail == "" {
		log.Fatal("SEED_ADMIN_EMAIL is required")
	}
	fleetSize := 5
	if v := os.Getenv("FLEET_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.WithField("FLEET_SIZE", v).Fatal("FLEET_SIZE must be a non-negative integer")
		}
		fleetSize = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	store := db.NewStore(client, cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	authService, err := auth.NewService(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	log.Info("Starting database seeding")

	password, err := seedAdmin(ctx, store.Users, authService, adminEmail, os.Getenv("SEED_ADMIN_PASSWORD"))
	switch {
	case errors.Is(err, db.ErrDuplicate):
		log.WithField("email", adminEmail).Info("Admin already exists, skipping")
	case err != nil:
		log.WithError(err).Fatal("Failed to seed admin")
	case password != "":
		log.WithField("email", adminEmail).Info("Created admin")
		fmt.Printf("Temporary password for %s: %s\n", adminEmail, password)
	default:
		log.WithField("email", adminEmail).Info("Created admin")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < fleetSize; i++ {
		v := randomVehicle(rng, i)
		if err := store.Vehicles.InsertVehicle(ctx, v); err != nil {
			log.WithError(err).WithField("plate", v.PlateNumber).Fatal("Failed to seed vehicle")
		}
		log.WithFields(log.Fields{"id": v.ID, "plate": v.PlateNumber, "brand": v.Brand, "model": v.Model}).Info("Created vehicle")
	}

	log.WithField("vehicles", fleetSize).Info("Database seeding completed")
}

// seedAdmin inserts the Admin account. When password is empty a temporary
// one is generated, flagged for change and returned.
func seedAdmin(ctx context.Context, users db.UserCollection, authService *auth.Service, email, password string) (string, error) {
	if err := authService.ValidateEmail(email); err != nil {
		return "", err
	}
	temporary := password == ""
	if temporary {
		generated, err := authService.GenerateTemporaryPassword()
		if err != nil {
			return "", err
		}
		password = generated
	} else if err := authService.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := authService.HashPassword(password)
	if err != nil {
		return "", err
	}
	admin := models.User{
		Email:             email,
		PasswordHash:      hash,
		TemporaryPassword: temporary,
		FirstName:         "Fleet",
		LastName:          "Admin",
		Role:              models.RoleAdmin,
	}
	if err := users.InsertUser(ctx, admin); err != nil {
		return "", err
	}
	if !temporary {
		return "", nil
	}
	return password, nil
}

// randomVehicle builds the i-th sample vehicle. Plates are sequential so a
// roster stays readable.
func randomVehicle(rng *rand.Rand, i int) models.Vehicle {
	fuel := fuelTypes[rng.Intn(len(fuelTypes))]
	brand := brands[fuel][rng.Intn(len(brands[fuel]))]
	model := modelsByBrand[brand][rng.Intn(len(modelsByBrand[brand]))]
	body := bodyTypes[rng.Intn(len(bodyTypes))]

	return models.Vehicle{
		ID:           models.GenerateVehicleID(),
		PlateNumber:  fmt.Sprintf("FLT %04d", i+1),
		Brand:        brand,
		Model:        model,
		Year:         2018 + rng.Intn(7),
		Type:         body,
		FuelType:     fuel,
		SeatCapacity: seatsByType[body],
	}
}

package models

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	bookingIDPattern    = regexp.MustCompile(`^BK-[A-Z0-9]{9}$`)
	vehicleIDPattern    = regexp.MustCompile(`^VH-[A-Z0-9]{6}$`)
	inspectionIDPattern = regexp.MustCompile(`^IN-[A-Z0-9]{9}$`)
)

// GenerateBookingID returns "BK-" followed by 9 uppercase alphanumerics.
func GenerateBookingID() string {
	return "BK-" + randomID(9)
}

// IsValidBookingID reports whether id has the booking id shape.
func IsValidBookingID(id string) bool {
	return bookingIDPattern.MatchString(id)
}

// GenerateVehicleID returns "VH-" followed by 6 uppercase alphanumerics.
func GenerateVehicleID() string {
	return "VH-" + randomID(6)
}

// IsValidVehicleID reports whether id has the vehicle id shape.
func IsValidVehicleID(id string) bool {
	return vehicleIDPattern.MatchString(id)
}

// GenerateInspectionID returns "IN-" followed by 9 uppercase alphanumerics.
func GenerateInspectionID() string {
	return "IN-" + randomID(9)
}

// IsValidInspectionID reports whether id has the inspection id shape.
func IsValidInspectionID(id string) bool {
	return inspectionIDPattern.MatchString(id)
}

func randomID(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		out[i] = idAlphabet[idx.Int64()]
	}
	return string(out)
}

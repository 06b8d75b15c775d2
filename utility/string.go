package utility

import (
	"github.com/google/uuid"
	"strconv"
)

func NewUUID() string {
	return uuid.New().String()
}

// ToInt converts a string to an integer, tolerating a float representation
func ToInt(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

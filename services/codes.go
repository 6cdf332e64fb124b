package services

import (
	"crypto/rand"
	"errors"

	"gorm.io/gorm"

	"herdmind/models"
)

// codeAlphabet omits 0/O/1/I so codes read unambiguously when shouted across
// a room.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

func generateJoinCode() string {
	bytes := make([]byte, codeLength)
	rand.Read(bytes)
	code := make([]byte, codeLength)
	for i, b := range bytes {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code)
}

// uniqueJoinCode retries random generation until the code is unused.
func uniqueJoinCode(db *gorm.DB) (string, error) {
	for {
		code := generateJoinCode()
		var existing models.Session
		err := db.Where("code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
}

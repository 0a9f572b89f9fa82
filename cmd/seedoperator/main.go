// cmd/seedoperator/main.go — dev utility: prints a bcrypt hash for registering
// a demo operator with the identity service, plus a signed JWT for exercising
// the API locally.
// Usage: JWT_SECRET=... go run cmd/seedoperator/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "oticapos-dev"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatalf("bcrypt error: %v", err)
	}

	operatorID := uuid.NewString()
	claims := jwt.MapClaims{
		"user_id": operatorID,
		"name":    "Demo Operator",
		"role":    "admin",
		"exp":     time.Now().Add(8 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("jwt error: %v", err)
	}

	fmt.Printf("operator_id:   %s\n", operatorID)
	fmt.Printf("password_hash: %s\n", string(hash))
	fmt.Printf("bearer_token:  %s\n", token)
}

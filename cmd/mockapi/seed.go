package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/plan-session/authapi/mockserver"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/users"
	"github.com/rs/zerolog/log"
)

const (
	demoClientEmail   = "client@example.com"
	demoProviderEmail = "provider@example.com"
)

// seedDemoUsers creates one client and one provider account. The password comes from
// DEMO_PASSWORD or is generated and logged once.
func seedDemoUsers(api *mockserver.Server) error {
	password := config.GetEnv("DEMO_PASSWORD", "")
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return err
		}
		password = generated
	}

	seeds := []struct {
		email, name string
		userType    users.UserType
	}{
		{demoClientEmail, "Demo Client", users.UserTypeClient},
		{demoProviderEmail, "Demo Provider", users.UserTypeProvider},
	}
	for _, seed := range seeds {
		u, err := api.SeedUser(seed.email, password, seed.name, seed.userType)
		if err != nil {
			return fmt.Errorf("[seedDemoUsers] %s: %w", seed.email, err)
		}
		log.Info().Str("user_id", u.ID).Str("email", u.Email).Str("user_type", string(u.UserType)).Msg("Seeded demo user")
	}
	log.Info().Str("password", password).Msg("Demo users share this password")
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[generatePassword] %w", err)
	}
	// Suffix satisfies the upper, lower and digit rules
	return base64.RawURLEncoding.EncodeToString(b) + "Pa7", nil
}

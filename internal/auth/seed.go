package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
)

// seedPasswordBytes is the number of random bytes for a generated seed password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first boot if no users exist.
//
// The username and password come from configuration; when no password is
// configured a random one is generated and logged at warn level once.
// It must be changed immediately.
//
// Returns the generated password (empty string when a configured password
// was used or seeding was skipped).
func SeedAdmin(ctx context.Context, userRepo UserRepository, cfg config.SeedConfig, logger *slog.Logger) (string, error) {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Debug("users exist, skipping admin seed")
		return "", nil
	}

	password := cfg.Password
	generated := ""
	if password == "" {
		buf := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(buf)
		generated = password
	}

	admin := &User{
		Username: cfg.Username,
		Password: password,
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated != "" {
		logger.Warn("seed admin account created with generated password",
			"username", admin.Username,
			"password", generated,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", admin.Username)
	}

	return generated, nil
}

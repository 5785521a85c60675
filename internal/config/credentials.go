package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envAPIKey      = "SURVIVOR_API_KEY"
	envAccessToken = "SURVIVOR_ACCESS_TOKEN"
)

// Credentials holds broker secrets. They never live in the YAML file.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// Empty reports whether no secret was found.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.AccessToken == ""
}

// LoadCredentials reads secrets from the environment after a best-effort load of envFile.
// Variables already set in the environment win over the file.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, err
	}
	return Credentials{
		APIKey:      strings.TrimSpace(os.Getenv(envAPIKey)),
		AccessToken: strings.TrimSpace(os.Getenv(envAccessToken)),
	}, nil
}

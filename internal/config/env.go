package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	// EnvConfigPath optionally points at a .json/.yaml settings file.
	EnvConfigPath = "HWBOT_CONFIG"
)

var ErrEnvVariableMissing = errors.New("required environment variable missing")

// EnvVariableMissingError names every required variable that is unset.
type EnvVariableMissingError struct {
	Names []string
}

func (e *EnvVariableMissingError) Error() string {
	return fmt.Sprintf("missing environment variables: %s", strings.Join(e.Names, ", "))
}

func (e *EnvVariableMissingError) Unwrap() error { return ErrEnvVariableMissing }

// Credentials are read once at startup and passed down explicitly.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	TelegramChatID string
}

// LoadDotEnv loads the given env files (default ".env") without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// LoadCredentials reads the three required variables through lookup
// (os.LookupEnv in production). All missing names are reported at once.
func LoadCredentials(lookup func(string) (string, bool)) (Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string, missing *[]string) string {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			*missing = append(*missing, name)
		}
		return v
	}

	var missing []string
	c := Credentials{
		PracticumToken: get(EnvPracticumToken, &missing),
		TelegramToken:  get(EnvTelegramToken, &missing),
		TelegramChatID: get(EnvTelegramChatID, &missing),
	}
	if len(missing) > 0 {
		return Credentials{}, &EnvVariableMissingError{Names: missing}
	}
	return c, nil
}

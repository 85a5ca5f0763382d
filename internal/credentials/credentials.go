// Package credentials loads refresh tokens from a .env file and the process
// environment.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Environment keys.
const (
	NumberedKeyPrefix = "REFRESH_TOKEN_"
	LegacyKey         = "REFRESH_TOKEN"
)

// ErrNoCredentials is returned when neither numbered nor legacy keys are set.
var ErrNoCredentials = errors.New("no refresh tokens found (set REFRESH_TOKEN_1..N or REFRESH_TOKEN)")

// Load returns the refresh tokens in order. Keys REFRESH_TOKEN_1, _2, ... are
// read until the first missing or empty one; REFRESH_TOKEN is used only when
// REFRESH_TOKEN_1 is absent. Process environment overrides envFile, and a
// missing envFile is not an error.
func Load(envFile string) ([]string, error) {
	v := viper.New()
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) ([]string, error) {
	var tokens []string
	for i := 1; ; i++ {
		token := strings.TrimSpace(v.GetString(NumberedKeyPrefix + strconv.Itoa(i)))
		if token == "" {
			break
		}
		tokens = append(tokens, token)
	}

	if len(tokens) == 0 {
		if token := strings.TrimSpace(v.GetString(LegacyKey)); token != "" {
			tokens = append(tokens, token)
		}
	}

	if len(tokens) == 0 {
		return nil, ErrNoCredentials
	}
	return tokens, nil
}

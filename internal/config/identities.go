package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kyvra-tech/node-reward-monitor/internal/models"
	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

type identitiesFile struct {
	Identities []models.Identity `yaml:"identities"`
}

// LoadIdentitiesFile reads named credentials from a YAML file:
//
//	identities:
//	  - name: Token1
//	    token: your_token_1
func LoadIdentitiesFile(path string) ([]models.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "read identities file: %v", err)
	}
	return ParseIdentities(data)
}

// ParseIdentities decodes and validates an identities document.
func ParseIdentities(data []byte) ([]models.Identity, error) {
	var file identitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "parse identities: %v", err)
	}
	if err := validateIdentities(file.Identities); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, err.Error())
	}
	return file.Identities, nil
}

func validateIdentities(identities []models.Identity) error {
	if len(identities) == 0 {
		return fmt.Errorf("no identities found")
	}

	seen := make(map[string]bool, len(identities))
	for i, identity := range identities {
		if identity.Name == "" {
			return fmt.Errorf("identity %d has empty name", i)
		}
		if identity.Credential == "" {
			return fmt.Errorf("identity %q has empty token", identity.Name)
		}
		if seen[identity.Name] {
			return fmt.Errorf("identity %q is listed twice", identity.Name)
		}
		seen[identity.Name] = true
	}
	return nil
}

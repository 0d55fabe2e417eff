// common/configloader/configloader.go
package configloader

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Validator is implemented by configs that can check themselves after decoding.
type Validator interface {
	Validate() error
}

// Load fills cfgPtr from registered defaults, then the YAML file at path
// (optional), then environment variables with envPrefix ("a.b" → PREFIX_A_B).
func Load(path, envPrefix string, cfgPtr interface{}) error {
	v := viper.New()

	// Step 1: registered defaults
	for key, val := range getDefaults() {
		v.SetDefault(key, val)
	}

	// Step 2: environment override
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Step 3: read file (if provided)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("configloader: read config %q: %w", path, err)
		}
	}

	// Step 4: decode
	if err := decode(v.AllSettings(), cfgPtr); err != nil {
		return fmt.Errorf("configloader: decode failed: %w", err)
	}

	// Step 5: validate if possible
	if val, ok := cfgPtr.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("configloader: validation failed: %w", err)
		}
	}

	return nil
}

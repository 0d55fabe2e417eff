package configloader

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// PrintConfig writes v as indented JSON. Fields tagged `json:"-"` (secrets) are omitted.
func PrintConfig(w io.Writer, v interface{}) error {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("configloader: marshal config: %w", err)
	}
	_, err = fmt.Fprintf(w, "Loaded configuration:\n%s\n", b)
	return err
}

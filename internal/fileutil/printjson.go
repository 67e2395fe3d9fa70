package fileutil

import (
	"encoding/json"
	"os"
)

// PrintJSON writes value to stdout indented. SQL text often carries < and >,
// so HTML escaping is off.
func PrintJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

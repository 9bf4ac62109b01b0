package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/shapebin/pkg/codec"
)

// printHeader renders h as a tree, JSON or YAML
func printHeader(w io.Writer, h *codec.Header, format string) error {
	switch format {
	case "", "tree":
		_, err := io.WriteString(w, h.String())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h.Summary())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(h.Summary()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

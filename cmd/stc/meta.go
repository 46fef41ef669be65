package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadMetaBanner reads an arbitrary YAML document and re-renders it as a
// "---"-delimited front-matter block to prepend to a seeded document.
func loadMetaBanner(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var meta map[string]any
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return "", err
	}

	out, err := yaml.Marshal(meta)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n")
	return b.String(), nil
}

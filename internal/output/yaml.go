package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/postforge/postforge/internal/core/store"
)

// YAMLFormatter renders views as YAML documents.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatLimits(views []LimitView) (string, error) {
	if len(views) == 1 {
		return marshalYAML(views[0])
	}
	return marshalYAML(views)
}

func (f *YAMLFormatter) FormatCredential(view CredentialView) (string, error) {
	return marshalYAML(view)
}

func (f *YAMLFormatter) FormatEntries(entries []store.Entry) (string, error) {
	return marshalYAML(entries)
}

func marshalYAML(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

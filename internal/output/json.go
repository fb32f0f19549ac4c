package output

import (
	"encoding/json"

	"github.com/postforge/postforge/internal/core/store"
)

// JSONFormatter renders views as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatLimits renders a single status as an object and several as an array.
func (f *JSONFormatter) FormatLimits(views []LimitView) (string, error) {
	if len(views) == 1 {
		return f.marshal(views[0])
	}
	if views == nil {
		views = []LimitView{}
	}
	return f.marshal(views)
}

func (f *JSONFormatter) FormatCredential(view CredentialView) (string, error) {
	return f.marshal(view)
}

func (f *JSONFormatter) FormatEntries(entries []store.Entry) (string, error) {
	if entries == nil {
		entries = []store.Entry{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

package output

import "github.com/postforge/postforge/internal/core/store"

// MarkdownFormatter renders views as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatLimits(views []LimitView) (string, error) {
	return limitsTable(views).RenderMarkdown(), nil
}

func (f *MarkdownFormatter) FormatCredential(view CredentialView) (string, error) {
	t, err := credentialTable(view)
	if err != nil {
		return "", err
	}
	return t.RenderMarkdown(), nil
}

func (f *MarkdownFormatter) FormatEntries(entries []store.Entry) (string, error) {
	return entriesTable(entries).RenderMarkdown(), nil
}

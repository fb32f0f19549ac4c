package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/postforge/postforge/internal/core/store"
)

// TableFormatter renders views as an ASCII table.
type TableFormatter struct{}

// FormatLimits renders limit statuses as a table.
func (f *TableFormatter) FormatLimits(views []LimitView) (string, error) {
	return limitsTable(views).Render(), nil
}

// FormatCredential renders a credential lookup as a table.
func (f *TableFormatter) FormatCredential(view CredentialView) (string, error) {
	t, err := credentialTable(view)
	if err != nil {
		return "", err
	}
	return t.Render(), nil
}

// FormatEntries renders raw store entries as a table.
func (f *TableFormatter) FormatEntries(entries []store.Entry) (string, error) {
	return entriesTable(entries).Render(), nil
}

func limitsTable(views []LimitView) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Status", "Remaining", "Reset At"})
	for _, view := range views {
		t.AppendRow(table.Row{view.Key, limitStatusLabel(view), remainingLabel(view), resetAtLabel(view)})
	}
	return t
}

func credentialTable(view CredentialView) (table.Writer, error) {
	payload, err := payloadLabel(view)
	if err != nil {
		return nil, err
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Payload", "Expires At"})
	t.AppendRow(table.Row{view.Key, payload, expiresAtLabel(view)})
	return t, nil
}

func entriesTable(entries []store.Entry) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Value", "Updated At"})
	for _, entry := range entries {
		t.AppendRow(table.Row{entry.Key, entry.Value, updatedAtLabel(entry.UpdatedAt)})
	}
	if len(entries) == 0 {
		t.AppendFooter(table.Row{"", "no entries", ""})
	}
	return t
}

package google

import (
	"fmt"
	"strings"
	"time"

	"splid/internal/entry"
)

const dateLayout = "2006-01-02"

// Header is the first row of the export sheet.
func Header() []any {
	return []any{"Entry", "Group", "Date", "Title", "Item", "Item title", "Participant", "Share", "Amount", "Currency", "Exported"}
}

// BuildRows returns one row per item and profiteer. Deleted entries have no
// rows. Items without explicit profiteers produce no rows; callers resolve
// implicit splits before exporting.
func BuildRows(groupID string, e *entry.Entry) [][]any {
	if e.IsDeleted() {
		return nil
	}

	date := e.CreatedDate()
	if d := e.PurchasedDate(); d != nil {
		date = *d
	}
	title := ""
	if t := e.Title(); t != nil {
		title = *t
	}
	exported := time.Now().UTC().Format(time.RFC3339)

	var rows [][]any
	for i, item := range e.Items() {
		itemTitle := ""
		if item.Title != nil {
			itemTitle = *item.Title
		}
		for _, p := range item.Profiteers {
			rows = append(rows, []any{
				e.ID(),
				groupID,
				formatDate(date),
				title,
				i,
				itemTitle,
				p.ID,
				p.Share,
				p.Amount,
				e.CurrencyCode(),
				exported,
			})
		}
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// findEntryRows returns the zero-based row indexes whose first cell is
// entryID.
func findEntryRows(values [][]any, entryID string) []int {
	var rows []int
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == entryID {
			rows = append(rows, i)
		}
	}
	return rows
}

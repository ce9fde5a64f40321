// Package export renders expense lists as downloadable files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"spendbook/internal/core"
)

// ContentType is the media type of WriteCSV output.
const ContentType = "text/csv; charset=utf-8"

var header = []string{"Title", "Category", "Amount", "Date", "Description"}

// Filename returns expenses-YYYY-MM-DD.csv for the day of now.
func Filename(now time.Time) string {
	return fmt.Sprintf("expenses-%s.csv", now.Format(core.DateLayout))
}

// WriteCSV writes a header and one row per expense, in the given order.
// Every field is quoted. Category holds the category names joined by "; ";
// ids with no matching category are skipped.
func WriteCSV(w io.Writer, expenses []core.Expense, categories []core.Category) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, header); err != nil {
		return err
	}
	idx := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	for _, e := range expenses {
		row := []string{
			e.Title,
			strings.Join(core.CategoryNames(e, idx), "; "),
			e.Amount.String(),
			e.Date.String(),
			e.Description,
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// writeRow quotes unconditionally; encoding/csv only quotes when it has to.
func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	if _, err := w.WriteString("\n"); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Package transfer reads and writes the tab-separated payloads used by the
// import and export endpoints.
package transfer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
	"github.com/annolab/judgepool/internal/judgement"
)

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ParsePairs decodes a judgement pair file: one "document_id<TAB>query_id<TAB>
// priority" line per pair. Pair replacement is all-or-nothing, so a single
// malformed line fails the whole parse.
func ParsePairs(r io.Reader) ([]catalog.JudgementPair, error) {
	reader := newReader(r)
	var pairs []catalog.JudgementPair
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(record))
		}
		priority, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid priority %q", line, record[2])
		}
		pairs = append(pairs, catalog.JudgementPair{
			DocumentID: strings.TrimSpace(record[0]),
			QueryID:    strings.TrimSpace(record[1]),
			Priority:   priority,
		})
	}
	return pairs, nil
}

// ReadDocumentRows decodes a document file: "document_id<TAB>text" with any
// further fields taken as annotatable parts. Malformed lines are carried as
// per-row errors so the rest of the batch still imports.
func ReadDocumentRows(r io.Reader) ([]catalog.DocumentImport, error) {
	reader := newReader(r)
	var rows []catalog.DocumentImport
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 2 {
			rows = append(rows, catalog.DocumentImport{
				Err: fmt.Errorf("line %d: expected at least 2 fields, got %d", line, len(record)),
			})
			continue
		}
		rows = append(rows, catalog.DocumentImport{
			DocumentID:    strings.TrimSpace(record[0]),
			Text:          record[1],
			AnnotateParts: record[2:],
		})
	}
	return rows, nil
}

// ReadQueryRows decodes a query file: one "query_id<TAB>text" line per query.
func ReadQueryRows(r io.Reader) ([]catalog.QueryImport, error) {
	reader := newReader(r)
	var rows []catalog.QueryImport
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) != 2 {
			rows = append(rows, catalog.QueryImport{
				Err: fmt.Errorf("line %d: expected 2 fields, got %d", line, len(record)),
			})
			continue
		}
		rows = append(rows, catalog.QueryImport{
			QueryID: strings.TrimSpace(record[0]),
			Text:    record[1],
		})
	}
	return rows, nil
}

var judgementHeader = []string{
	"judgement_id", "user_id", "status", "mode", "rotate",
	"document_id", "document_version", "document_text",
	"query_id", "query_version", "query_text",
	"relevance_level", "relevance_positions", "duration_ms",
	"created_at", "judged_at",
}

// WriteJudgements renders export records as a TSV with a header row.
func WriteJudgements(w io.Writer, records []judgement.ExportRecord) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	if err := writer.Write(judgementHeader); err != nil {
		return err
	}
	for _, record := range records {
		row := []string{
			record.JudgementID,
			record.UserID,
			string(record.Status),
			record.Mode,
			strconv.FormatBool(record.Rotate),
			record.DocumentID,
			strconv.Itoa(record.DocumentVersion),
			record.DocumentText,
			record.QueryID,
			strconv.Itoa(record.QueryVersion),
			record.QueryText,
			formatOptionalInt(record.RelevanceLevel),
			formatPositions(record.RelevancePositions),
			formatOptionalInt64(record.DurationMs),
			record.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			formatOptionalTime(record.JudgedAt),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatPositions(positions []int) string {
	if len(positions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(positions))
	for _, position := range positions {
		parts = append(parts, strconv.Itoa(position))
	}
	return strings.Join(parts, ",")
}

func formatOptionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func formatOptionalInt64(value *int64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatInt(*value, 10)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format("2006-01-02T15:04:05Z")
}

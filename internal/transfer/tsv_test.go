package transfer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/annolab/judgepool/internal/judgement"
)

func TestParsePairs(t *testing.T) {
	input := "doc1\tq1\t5\ndoc2\tq1\t5\ndoc1\tq2\t1\n"

	pairs, err := ParsePairs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if pairs[0].DocumentID != "doc1" || pairs[0].QueryID != "q1" || pairs[0].Priority != 5 {
		t.Fatalf("unexpected first pair %+v", pairs[0])
	}
	if pairs[2].Priority != 1 {
		t.Fatalf("unexpected third pair %+v", pairs[2])
	}
}

func TestParsePairsFailsWholeFileOnBadLine(t *testing.T) {
	input := "doc1\tq1\t5\ndoc2\tq1\tnot-a-number\n"

	if _, err := ParsePairs(strings.NewReader(input)); err == nil {
		t.Fatalf("expected parse failure on invalid priority")
	}

	short := "doc1\tq1\t5\ndoc2\tq1\n"
	if _, err := ParsePairs(strings.NewReader(short)); err == nil {
		t.Fatalf("expected parse failure on short line")
	}
}

func TestReadDocumentRowsCarriesPerRowErrors(t *testing.T) {
	input := "doc1\tsome text\tpart-a\tpart-b\nbroken-line\ndoc2\tother text\n"

	rows, err := ReadDocumentRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected reader error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Err != nil || rows[0].DocumentID != "doc1" || len(rows[0].AnnotateParts) != 2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Err == nil {
		t.Fatalf("short line must carry an error")
	}
	if rows[2].Err != nil || rows[2].DocumentID != "doc2" {
		t.Fatalf("rows after a bad line must still parse: %+v", rows[2])
	}
}

func TestReadQueryRows(t *testing.T) {
	input := "q1\twhat is relevance\nq2\tanother question\n"

	rows, err := ReadQueryRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected reader error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].QueryID != "q1" || rows[0].Text != "what is relevance" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestWriteJudgements(t *testing.T) {
	level := 2
	duration := int64(1500)
	judgedAt := time.Unix(1700000900, 0).UTC()

	records := []judgement.ExportRecord{
		{
			JudgementID:        "judgement-1",
			UserID:             "annotator-a",
			Status:             judgement.StatusJudged,
			Mode:               "GRADED",
			Rotate:             true,
			DocumentID:         "doc1",
			DocumentVersion:    1,
			DocumentText:       "pinned document text",
			QueryID:            "q1",
			QueryVersion:       1,
			QueryText:          "pinned query text",
			RelevanceLevel:     &level,
			RelevancePositions: []int{4, 9},
			DurationMs:         &duration,
			CreatedAt:          time.Unix(1700000600, 0).UTC(),
			JudgedAt:           &judgedAt,
		},
		{
			JudgementID:     "judgement-2",
			UserID:          "annotator-b",
			Status:          judgement.StatusToJudge,
			Mode:            "GRADED",
			DocumentID:      "doc2",
			DocumentVersion: 1,
			DocumentText:    "other document",
			QueryID:         "q1",
			QueryVersion:    1,
			QueryText:       "pinned query text",
			CreatedAt:       time.Unix(1700000700, 0).UTC(),
		},
	}

	var buffer bytes.Buffer
	if err := WriteJudgements(&buffer, records); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buffer.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "judgement_id\tuser_id\tstatus") {
		t.Fatalf("unexpected header %q", lines[0])
	}

	first := strings.Split(lines[1], "\t")
	if first[0] != "judgement-1" || first[2] != "JUDGED" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[1], "pinned document text") {
		t.Fatalf("export row must carry the snapshot text verbatim: %q", lines[1])
	}
	if !strings.Contains(lines[1], "4,9") {
		t.Fatalf("expected encoded positions in %q", lines[1])
	}

	second := strings.Split(lines[2], "\t")
	if second[11] != "" {
		t.Fatalf("open judgement must have an empty relevance level, got %q", second[11])
	}
}

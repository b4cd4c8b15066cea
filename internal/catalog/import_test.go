package catalog

import (
	"context"
	"testing"
)

func TestImportDocumentsAppendsVersions(t *testing.T) {
	service, db := newTestService(t)

	outcomes := service.ImportDocuments(context.Background(), []DocumentImport{
		{DocumentID: "doc1", Text: "first revision", AnnotateParts: []string{"p1", "p2"}},
	})
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcomes: %#v", outcomes)
	}
	if outcomes[0].Version != 1 {
		t.Fatalf("expected version 1, got %d", outcomes[0].Version)
	}

	outcomes = service.ImportDocuments(context.Background(), []DocumentImport{
		{DocumentID: "doc1", Text: "second revision"},
	})
	if outcomes[0].Err != nil {
		t.Fatalf("unexpected error: %v", outcomes[0].Err)
	}
	if outcomes[0].Version != 2 {
		t.Fatalf("expected version 2, got %d", outcomes[0].Version)
	}

	current, err := CurrentDocumentVersion(db, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Version != 2 || current.Text != "second revision" {
		t.Fatalf("unexpected current version: %+v", current)
	}

	first, err := DocumentVersionAt(db, "doc1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts, err := first.Parts()
	if err != nil {
		t.Fatalf("failed to decode parts: %v", err)
	}
	if len(parts) != 2 || parts[0] != "p1" {
		t.Fatalf("first snapshot must be untouched, got %#v", parts)
	}
}

func TestImportDocumentsReportsPerRowErrors(t *testing.T) {
	service, db := newTestService(t)

	outcomes := service.ImportDocuments(context.Background(), []DocumentImport{
		{DocumentID: "doc1", Text: "fine"},
		{DocumentID: "", Text: "missing id"},
		{DocumentID: "doc2", Text: ""},
		{DocumentID: "doc3", Text: "also fine"},
	})
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[3].Err != nil {
		t.Fatalf("valid rows must import: %#v", outcomes)
	}
	if outcomes[1].Err == nil || outcomes[2].Err == nil {
		t.Fatalf("invalid rows must be reported: %#v", outcomes)
	}

	var count int64
	if err := db.Model(&DocumentVersion{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count versions: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 snapshots, got %d", count)
	}
}

func TestImportQueriesAppendsVersions(t *testing.T) {
	service, db := newTestService(t)

	outcomes := service.ImportQueries(context.Background(), []QueryImport{
		{QueryID: "q1", Text: "looking for things"},
		{QueryID: "", Text: "nope"},
	})
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Fatalf("unexpected error: %v", outcomes[0].Err)
	}
	if outcomes[1].Err == nil {
		t.Fatalf("empty query id must be rejected")
	}

	current, err := CurrentQueryVersion(db, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Version != 1 || current.Text != "looking for things" {
		t.Fatalf("unexpected current version: %+v", current)
	}
}

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/finreview/internal/models"
)

func TestIngestStorage_SaveAndList(t *testing.T) {
	storage := newTestManager(t).Ingests()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"ing_1", "ing_2", "ing_3"} {
		record := &models.IngestRecord{
			IngestID:   id,
			ReportID:   "601360_2024-09-30",
			ChunkCount: 10 + i,
			Inserted:   10 + i,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := storage.SaveIngest(ctx, record); err != nil {
			t.Fatalf("Failed to save ingest %s: %v", id, err)
		}
	}

	records, err := storage.ListIngests(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list ingests: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].IngestID != "ing_3" {
		t.Errorf("Expected newest record first, got %s", records[0].IngestID)
	}
}

func TestIngestStorage_ListByReport(t *testing.T) {
	storage := newTestManager(t).Ingests()
	ctx := context.Background()

	for id, reportID := range map[string]string{
		"ing_a": "601360_2024-09-30",
		"ing_b": "002415_2024-09-30",
		"ing_c": "601360_2024-09-30",
	} {
		record := &models.IngestRecord{IngestID: id, ReportID: reportID, CreatedAt: time.Now()}
		if err := storage.SaveIngest(ctx, record); err != nil {
			t.Fatalf("Failed to save ingest %s: %v", id, err)
		}
	}

	records, err := storage.ListIngestsByReport(ctx, "601360_2024-09-30")
	if err != nil {
		t.Fatalf("Failed to list ingests by report: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records for report, got %d", len(records))
	}
	for _, record := range records {
		if record.ReportID != "601360_2024-09-30" {
			t.Errorf("Unexpected report ID %s", record.ReportID)
		}
	}
}

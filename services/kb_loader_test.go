package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"exam-tutor-platform/models"
)

func TestLoadDirectoryFromSampleKnowledgeBase(t *testing.T) {
	root := t.TempDir()
	if err := CreateSampleKnowledgeBase(root); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)

	total, err := loader.LoadDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	// 7 textbook passages, 5 formulas, 3 past paper questions.
	if total != 15 {
		t.Errorf("loaded %d documents, want 15", total)
	}
	if idx.Size() != total {
		t.Errorf("index size %d != loaded %d", idx.Size(), total)
	}

	stats := idx.Stats()
	if stats.Sources["NCERT"] != 7 {
		t.Errorf("NCERT documents = %d, want 7", stats.Sources["NCERT"])
	}
	if stats.Sources["Formula Sheet"] != 5 {
		t.Errorf("formula documents = %d, want 5", stats.Sources["Formula Sheet"])
	}
	if stats.Sources["JEE 2023"] != 3 {
		t.Errorf("past paper documents = %d, want 3", stats.Sources["JEE 2023"])
	}

	// The pH past question must be retrievable with its composed text.
	results, err := idx.Search(context.Background(), "Question: Calculate the pH of a 0.01 M HCl solution.", 3, models.SearchFilter{Subject: "chemistry"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected chemistry results")
	}
}

func TestLoadFileRoutesByCategory(t *testing.T) {
	root := t.TempDir()
	if err := CreateSampleKnowledgeBase(root); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)

	n, err := loader.LoadFile(context.Background(), filepath.Join(root, "formulas", "chemistry.json"))
	if err != nil {
		t.Fatalf("load file error: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d formulas, want 2", n)
	}

	n, err = loader.LoadFile(context.Background(), filepath.Join(root, "ncert", "physics", "laws_of_motion.json"))
	if err != nil {
		t.Fatalf("load file error: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded %d passages, want 3", n)
	}

	stats := idx.Stats()
	if stats.Subjects["physics"] != 3 {
		t.Errorf("physics documents = %d, want 3", stats.Subjects["physics"])
	}
}

func TestLoadDirectoryTwiceDoesNotDuplicate(t *testing.T) {
	root := t.TempDir()
	if err := CreateSampleKnowledgeBase(root); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)

	for pass := 1; pass <= 2; pass++ {
		if _, err := loader.LoadDirectory(context.Background(), root); err != nil {
			t.Fatalf("pass %d load error: %v", pass, err)
		}
	}
	if idx.Size() != 15 {
		t.Errorf("re-ingesting the same files grew the index to %d, want 15", idx.Size())
	}
}

func TestLoadFileReplacesEarlierDocuments(t *testing.T) {
	root := t.TempDir()
	if err := CreateSampleKnowledgeBase(root); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)
	path := filepath.Join(root, "formulas", "chemistry.json")

	if _, err := loader.LoadFile(context.Background(), path); err != nil {
		t.Fatalf("load file error: %v", err)
	}

	// Rewrite the sheet down to one formula; re-ingesting must replace
	// both earlier documents, not stack a third on top.
	rewritten := `[{"name": "pH", "formula": "pH = -log[H+]", "description": "Acidity measure", "topics": ["pH"]}]`
	if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("reingest error: %v", err)
	}
	if n != 1 {
		t.Errorf("reingest loaded %d documents, want 1", n)
	}
	if idx.Size() != 1 {
		t.Errorf("index size after reingest = %d, want 1", idx.Size())
	}
}

func TestReloadDirectoryDropsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	if err := CreateSampleKnowledgeBase(root); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)

	if _, err := loader.LoadDirectory(context.Background(), root); err != nil {
		t.Fatalf("load error: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "past_papers", "jee_2023_sample.json")); err != nil {
		t.Fatal(err)
	}

	total, err := loader.ReloadDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if total != 12 {
		t.Errorf("reload ingested %d documents, want 12", total)
	}
	if idx.Size() != 12 {
		t.Errorf("index size after reload = %d, want 12", idx.Size())
	}
	if idx.Stats().Sources["JEE 2023"] != 0 {
		t.Error("deleted past paper survived the rebuild")
	}
}

func TestLoadFileRejectsUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewKnowledgeBaseLoader(NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil))
	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Fatal("expected error for file outside knowledge base layout")
	}
}

func TestSkipsMalformedFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "formulas"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "formulas", "broken.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	loader := NewKnowledgeBaseLoader(idx)

	total, err := loader.LoadDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("malformed file should be skipped, got error: %v", err)
	}
	if total != 0 {
		t.Errorf("loaded %d from malformed input, want 0", total)
	}
}

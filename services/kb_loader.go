package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/models"
)

// Knowledge base directory layout:
//
//	<root>/ncert/<subject>/*.json   textbook chapters with passages
//	<root>/formulas/*.json          formula sheets, one file per subject
//	<root>/past_papers/*.json       solved past paper questions
//	<root>/pdfs/<subject>/*.pdf     supplementary PDF material
type KnowledgeBaseLoader struct {
	index     *VectorIndex
	extractor *PDFExtractor
}

func NewKnowledgeBaseLoader(index *VectorIndex) *KnowledgeBaseLoader {
	return &KnowledgeBaseLoader{
		index:     index,
		extractor: NewPDFExtractor(),
	}
}

type ncertChapter struct {
	Chapter  string `json:"chapter"`
	Passages []struct {
		Text   string   `json:"text"`
		Page   int      `json:"page"`
		Topics []string `json:"topics"`
	} `json:"passages"`
}

type formulaEntry struct {
	Name        string   `json:"name"`
	Formula     string   `json:"formula"`
	Description string   `json:"description"`
	Conditions  string   `json:"conditions"`
	Topics      []string `json:"topics"`
}

type pastPaper struct {
	Year      string `json:"year"`
	Questions []struct {
		Text       string   `json:"text"`
		Subject    string   `json:"subject"`
		Topics     []string `json:"topics"`
		Difficulty string   `json:"difficulty"`
		Marks      int      `json:"marks"`
		Solution   string   `json:"solution"`
	} `json:"questions"`
}

// ReloadDirectory rebuilds the index from scratch: every indexed
// document is dropped, then the whole directory is re-ingested. Files
// deleted from disk disappear from the index this way.
func (l *KnowledgeBaseLoader) ReloadDirectory(ctx context.Context, root string) (int, error) {
	l.index.Clear()
	return l.LoadDirectory(ctx, root)
}

// LoadDirectory ingests every recognized category under root and
// returns how many documents were indexed. A file that was ingested
// before has its documents replaced, not appended. Individual
// unreadable files are logged and skipped so one bad file cannot block
// ingestion.
func (l *KnowledgeBaseLoader) LoadDirectory(ctx context.Context, root string) (int, error) {
	total := 0

	for _, loader := range []struct {
		sub  string
		load func(context.Context, string) (int, error)
	}{
		{"ncert", l.loadNCERT},
		{"formulas", l.loadFormulas},
		{"past_papers", l.loadPastPapers},
		{"pdfs", l.loadPDFs},
	} {
		dir := filepath.Join(root, loader.sub)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		n, err := loader.load(ctx, dir)
		if err != nil {
			return total, err
		}
		total += n
	}

	logger.Info("knowledge base loaded", "root", root, "documents", total)
	return total, nil
}

// LoadFile ingests a single knowledge base file, routing on the
// category directory it sits under. The file watcher calls this when a
// file appears or changes.
func (l *KnowledgeBaseLoader) LoadFile(ctx context.Context, path string) (int, error) {
	category := filepath.Base(filepath.Dir(path))
	// NCERT and PDF files sit one level deeper, under a subject directory.
	parent := filepath.Base(filepath.Dir(filepath.Dir(path)))

	switch {
	case parent == "ncert":
		return l.loadNCERTChapter(ctx, path, strings.ToLower(category))
	case category == "formulas":
		return l.loadFormulaSheet(ctx, path)
	case category == "past_papers":
		return l.loadPastPaper(ctx, path)
	case parent == "pdfs":
		return l.loadPDF(ctx, path, strings.ToLower(category))
	default:
		return 0, fmt.Errorf("file %s is not under a recognized knowledge base category", path)
	}
}

func (l *KnowledgeBaseLoader) loadNCERT(ctx context.Context, dir string) (int, error) {
	total := 0
	subjects, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, subjectDir := range subjects {
		if !subjectDir.IsDir() {
			continue
		}
		subject := strings.ToLower(subjectDir.Name())
		files, err := filepath.Glob(filepath.Join(dir, subjectDir.Name(), "*.json"))
		if err != nil {
			return total, err
		}
		for _, file := range files {
			n, err := l.loadNCERTChapter(ctx, file, subject)
			if err != nil {
				logger.Error("skipping textbook chapter", "file", file, "error", err)
				continue
			}
			total += n
		}
	}
	return total, nil
}

func (l *KnowledgeBaseLoader) loadNCERTChapter(ctx context.Context, path, subject string) (int, error) {
	var chapter ncertChapter
	if err := readJSON(path, &chapter); err != nil {
		return 0, err
	}

	docs := make([]models.Document, 0, len(chapter.Passages))
	for _, p := range chapter.Passages {
		if p.Text == "" {
			continue
		}
		docs = append(docs, models.Document{
			Text: p.Text,
			Meta: models.DocumentMeta{
				Source:  "NCERT",
				Subject: subject,
				Chapter: chapter.Chapter,
				Page:    p.Page,
				Topics:  p.Topics,
			},
		})
	}
	return l.replace(ctx, path, docs)
}

// replace stamps every document with its origin file, drops the file's
// previously indexed documents and adds the fresh set. Removal happens
// only after the file parsed cleanly, so a broken rewrite keeps the old
// documents in place.
func (l *KnowledgeBaseLoader) replace(ctx context.Context, path string, docs []models.Document) (int, error) {
	file := filepath.Clean(path)
	for i := range docs {
		docs[i].Meta.File = file
	}
	l.index.RemoveFile(file)
	if err := l.index.Add(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (l *KnowledgeBaseLoader) loadFormulas(ctx context.Context, dir string) (int, error) {
	total := 0
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		n, err := l.loadFormulaSheet(ctx, file)
		if err != nil {
			logger.Error("skipping formula sheet", "file", file, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

func (l *KnowledgeBaseLoader) loadFormulaSheet(ctx context.Context, path string) (int, error) {
	var formulas []formulaEntry
	if err := readJSON(path, &formulas); err != nil {
		return 0, err
	}
	subject := strings.ToLower(strings.TrimSuffix(filepath.Base(path), ".json"))

	docs := make([]models.Document, 0, len(formulas))
	for _, f := range formulas {
		text := fmt.Sprintf("%s: %s\nDescription: %s", f.Name, f.Formula, f.Description)
		if f.Conditions != "" {
			text += "\nConditions: " + f.Conditions
		}
		docs = append(docs, models.Document{
			Text: text,
			Meta: models.DocumentMeta{
				Source:  "Formula Sheet",
				Subject: subject,
				Topics:  f.Topics,
				Extra:   map[string]string{"formula_name": f.Name},
			},
		})
	}
	return l.replace(ctx, path, docs)
}

func (l *KnowledgeBaseLoader) loadPastPapers(ctx context.Context, dir string) (int, error) {
	total := 0
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		n, err := l.loadPastPaper(ctx, file)
		if err != nil {
			logger.Error("skipping past paper", "file", file, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

func (l *KnowledgeBaseLoader) loadPastPaper(ctx context.Context, path string) (int, error) {
	var paper pastPaper
	if err := readJSON(path, &paper); err != nil {
		return 0, err
	}

	docs := make([]models.Document, 0, len(paper.Questions))
	for _, q := range paper.Questions {
		extra := map[string]string{}
		if q.Difficulty != "" {
			extra["difficulty"] = q.Difficulty
		}
		if q.Marks > 0 {
			extra["marks"] = fmt.Sprintf("%d", q.Marks)
		}
		docs = append(docs, models.Document{
			Text: fmt.Sprintf("Question: %s\nSolution: %s", q.Text, q.Solution),
			Meta: models.DocumentMeta{
				Source:  "JEE " + paper.Year,
				Subject: strings.ToLower(q.Subject),
				Topics:  q.Topics,
				Extra:   extra,
			},
		})
	}
	return l.replace(ctx, path, docs)
}

func (l *KnowledgeBaseLoader) loadPDFs(ctx context.Context, dir string) (int, error) {
	total := 0
	subjects, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, subjectDir := range subjects {
		if !subjectDir.IsDir() {
			continue
		}
		subject := strings.ToLower(subjectDir.Name())
		files, err := filepath.Glob(filepath.Join(dir, subjectDir.Name(), "*.pdf"))
		if err != nil {
			return total, err
		}
		for _, file := range files {
			n, err := l.loadPDF(ctx, file, subject)
			if err != nil {
				logger.Error("skipping pdf", "file", file, "error", err)
				continue
			}
			total += n
		}
	}
	return total, nil
}

func (l *KnowledgeBaseLoader) loadPDF(ctx context.Context, path, subject string) (int, error) {
	pages, err := l.extractor.ExtractPages(ctx, path)
	if err != nil {
		return 0, err
	}

	name := filepath.Base(path)
	docs := make([]models.Document, 0, len(pages))
	for _, page := range pages {
		docs = append(docs, models.Document{
			Text: page.Text,
			Meta: models.DocumentMeta{
				Source:  name,
				Subject: subject,
				Page:    page.Number,
			},
		})
	}
	return l.replace(ctx, path, docs)
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

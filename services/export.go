package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"exam-tutor-platform/models"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ExportService renders stored query history as a spreadsheet for
// offline review by content teams.
type ExportService struct {
	queries *mongo.Collection
}

func NewExportService(db *mongo.Database) *ExportService {
	return &ExportService{queries: db.Collection("queries")}
}

// HistoryExportRequest narrows which history records are exported.
type HistoryExportRequest struct {
	Subject  string    `form:"subject"`
	DateFrom time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo   time.Time `form:"date_to" time_format:"2006-01-02"`
	Limit    int64     `form:"limit"`
}

const exportSheetName = "Query History"

// ExportHistory fetches matching records and returns the spreadsheet
// bytes plus the number of exported rows.
func (es *ExportService) ExportHistory(ctx context.Context, req HistoryExportRequest) ([]byte, int, error) {
	filter := bson.M{}
	if req.Subject != "" {
		filter["subject"] = req.Subject
	}
	dateRange := bson.M{}
	if !req.DateFrom.IsZero() {
		dateRange["$gte"] = req.DateFrom
	}
	if !req.DateTo.IsZero() {
		dateRange["$lte"] = req.DateTo
	}
	if len(dateRange) > 0 {
		filter["created_at"] = dateRange
	}

	limit := req.Limit
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit)

	cursor, err := es.queries.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.QueryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("decoding history: %w", err)
	}

	data, err := buildHistoryWorkbook(records)
	if err != nil {
		return nil, 0, err
	}
	return data, len(records), nil
}

func buildHistoryWorkbook(records []models.QueryRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Query ID", "Question", "Subject", "Type", "Final Answer",
		"Confidence", "Tokens Used", "Latency (ms)", "Created At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(exportSheetName, cell, header)
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		f.SetCellValue(exportSheetName, fmt.Sprintf("A%d", row), rec.QueryID)
		f.SetCellValue(exportSheetName, fmt.Sprintf("B%d", row), rec.Question)
		f.SetCellValue(exportSheetName, fmt.Sprintf("C%d", row), rec.Subject)
		f.SetCellValue(exportSheetName, fmt.Sprintf("D%d", row), rec.QueryType)
		f.SetCellValue(exportSheetName, fmt.Sprintf("E%d", row), rec.Solution.FinalAnswer)
		f.SetCellValue(exportSheetName, fmt.Sprintf("F%d", row), rec.Solution.Confidence)
		f.SetCellValue(exportSheetName, fmt.Sprintf("G%d", row), rec.TokensUsed)
		f.SetCellValue(exportSheetName, fmt.Sprintf("H%d", row), rec.LatencyMs)
		f.SetCellValue(exportSheetName, fmt.Sprintf("I%d", row), rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// models/query.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueryRecord is the persisted history entry for one answered question.
type QueryRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	QueryID    string             `bson:"query_id" json:"query_id"`
	Question   string             `bson:"question" json:"question"`
	Subject    string             `bson:"subject,omitempty" json:"subject,omitempty"`
	QueryType  string             `bson:"query_type" json:"query_type"`
	Solution   FormattedSolution  `bson:"solution" json:"solution"`
	Sources    []SearchResult     `bson:"sources,omitempty" json:"sources,omitempty"`
	TokensUsed int                `bson:"tokens_used" json:"tokens_used"`
	LatencyMs  int64              `bson:"latency_ms" json:"latency_ms"`
	ParentID   string             `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Feedback is a student rating of an answered query.
type Feedback struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	QueryID   string             `bson:"query_id" json:"query_id"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	IssueType string             `bson:"issue_type,omitempty" json:"issue_type,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question" binding:"required,min=1,max=4000"`
	Subject  string `json:"subject,omitempty"`
}

// FollowUpRequest is the body of POST /api/query/:id/followup.
type FollowUpRequest struct {
	Question string `json:"question" binding:"required,min=1,max=4000"`
}

// QueryResponse is returned for query and follow-up requests.
type QueryResponse struct {
	QueryID    string            `json:"query_id"`
	Question   string            `json:"question"`
	Subject    string            `json:"subject,omitempty"`
	QueryType  string            `json:"query_type"`
	Solution   FormattedSolution `json:"solution"`
	Sources    []SearchResult    `json:"sources,omitempty"`
	TokensUsed int               `json:"tokens_used"`
	CreatedAt  time.Time         `json:"created_at"`
}

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	QueryID   string `json:"query_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty"`
	IssueType string `json:"issue_type,omitempty"`
}

// FeedbackStats aggregates ratings for the admin dashboard.
type FeedbackStats struct {
	TotalFeedback int            `json:"total_feedback"`
	AverageRating float64        `json:"average_rating"`
	RatingCounts  map[string]int `json:"rating_counts"`
	IssueCounts   map[string]int `json:"issue_counts,omitempty"`
}

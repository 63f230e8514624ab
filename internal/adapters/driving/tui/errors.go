package tui

import "errors"

// ErrMissingInsightService is returned when the insight service is not provided.
var ErrMissingInsightService = errors.New("tui: insight service is required")

// ErrMissingIngestService is returned when the ingest service is not provided.
var ErrMissingIngestService = errors.New("tui: ingest service is required")

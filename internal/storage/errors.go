package storage

import "errors"

var (
	// ErrNoData is returned when no file or feed holds data for the requested day.
	ErrNoData = errors.New("no data for date")
	// ErrUnsupportedFormat is returned for a flat-file extension we cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingColumn is returned when a flat file lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
)

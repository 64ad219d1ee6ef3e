package services

import "errors"

var (
	ErrUnsupportedFile  = errors.New("file cannot be processed for this broker")
	ErrDuplicateFile    = errors.New("file has already been processed")
	ErrProcessingFailed = errors.New("data point processing failed")
)

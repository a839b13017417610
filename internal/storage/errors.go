package storage

import "errors"

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template already exists")
	ErrReportNotFound   = errors.New("report not found")
	ErrInvalidReportID  = errors.New("report id is not a UUID")
)

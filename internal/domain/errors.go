package domain

import "errors"

var (
	ErrValidationFailed = errors.New("invalid file format or corrupted file")
	ErrFileTooLarge     = errors.New("file size exceeds maximum allowed")
	ErrTooManyPixels    = errors.New("image pixel count exceeds maximum allowed")
	ErrTooManyFrames    = errors.New("image frame count exceeds maximum allowed")
	ErrDimensionUnknown = errors.New("could not determine image dimensions")
	ErrTranscodeFailed  = errors.New("image processing failed")
	ErrPublishFailed    = errors.New("publishing processed image failed")
	ErrCleanupFailed    = errors.New("cleanup of original upload failed")
	ErrScheduleFailed   = errors.New("scheduling deferred cleanup failed")
	ErrObjectNotFound   = errors.New("object not found")
	ErrRecordNotFound   = errors.New("record not found")
)

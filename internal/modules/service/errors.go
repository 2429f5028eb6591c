package service

import (
	"errors"
	"fmt"
)

// Service layer errors for better error handling
var (
	// Ingest input errors
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnsupportedType = errors.New("media type cannot be classified")
	ErrMissingActor    = errors.New("actor is required")

	// Asset errors
	ErrAssetNotFound     = errors.New("asset not found")
	ErrMissingThumbnail  = errors.New("thumbnail key is required")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Kind classifies an ingest failure for the transport layer.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindStorage      Kind = "storage"
	KindCommit       Kind = "commit"
	KindCanceled     Kind = "canceled"
)

// Stage is a step of the ingest state machine.
type Stage string

const (
	StageValidating  Stage = "validating"
	StageDeriving    Stage = "deriving"
	StageUploading   Stage = "uploading"
	StageCommitting  Stage = "committing"
	StageDispatching Stage = "dispatching"
	StageCompleted   Stage = "completed"
)

// IngestError is returned by Ingest when the pipeline aborts.
type IngestError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest aborted at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

func abort(stage Stage, kind Kind, err error) *IngestError {
	return &IngestError{Stage: stage, Kind: kind, Err: err}
}

// IsKind reports whether err is an IngestError of kind k.
func IsKind(err error, k Kind) bool {
	var ie *IngestError
	return errors.As(err, &ie) && ie.Kind == k
}

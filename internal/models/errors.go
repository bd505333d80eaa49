package models

import "errors"

var (
	ErrIndexNotFound   = errors.New("index not found")
	ErrBackendMismatch = errors.New("embedding backend does not match index")
	ErrMisaligned      = errors.New("index and metadata are misaligned")
	ErrNoJSON          = errors.New("no JSON object in model output")
	ErrEmptyResponse   = errors.New("model returned no choices")
)

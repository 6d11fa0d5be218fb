package audiofile

import (
	"github.com/tphakala/audiobridge/internal/errors"
)

// Component identifier for audiofile errors
const ComponentAudioFile = "audiofile"

var (
	// ErrUnsupportedFormat is returned for file extensions or encodings no
	// decoder handles
	ErrUnsupportedFormat = errors.New(errors.NewStd("unsupported audio file format")).
				Component(ComponentAudioFile).
				Category(errors.CategoryValidation).
				Build()

	// ErrInvalidFile is returned when a file's header cannot be parsed
	ErrInvalidFile = errors.New(errors.NewStd("invalid audio file")).
			Component(ComponentAudioFile).
			Category(errors.CategoryFileParsing).
			Build()

	// ErrWriterClosed is returned by writes after Close
	ErrWriterClosed = errors.New(errors.NewStd("audio file writer closed")).
			Component(ComponentAudioFile).
			Category(errors.CategoryState).
			Build()
)

// decodeError wraps a decoder failure with the format that produced it.
func decodeError(err error, format string) error {
	return errors.New(err).
		Component(ComponentAudioFile).
		Category(errors.CategoryFileParsing).
		Context("format", format).
		Build()
}

package bot

import "errors"

// Error classes of a run. Concrete errors wrap one of these.
var (
	ErrConfig        = errors.New("configuration error")
	ErrSearch        = errors.New("search failed")
	ErrCorpus        = errors.New("corpus error")
	ErrSubmit        = errors.New("reply submission failed")
	ErrNotConfigured = errors.New("auth not configured: call ConfigureAuth before Reply")
)

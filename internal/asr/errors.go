package asr

import "github.com/embervox/parakeetstream/internal/model"

// ErrInvalidAudio is re-exported from internal/model so callers of this
// package don't need to import model just to match on it with errors.Is.
var ErrInvalidAudio = model.ErrInvalidAudio

package loader

import "errors"

// errNotUTF8 marks documents rejected before JSON decoding because their
// bytes are not valid UTF-8.
var errNotUTF8 = errors.New("document is not valid UTF-8")

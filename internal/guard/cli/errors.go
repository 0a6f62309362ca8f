package cli

import "errors"

// errBlocked is returned by check and inspect with --fail when the verdict is block.
var errBlocked = errors.New("content would be blocked")

package sessions

import "time"

// now is overridden in tests that need deterministic timestamps.
var now = time.Now

package detector

import "time"

// nowUnixNano is indirected so recorder filenames stay testable without
// depending on wall-clock time directly in the hot path.
var nowUnixNano = func() int64 { return time.Now().UnixNano() }

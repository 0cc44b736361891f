package gpio

import "time"

var processStart = time.Now()

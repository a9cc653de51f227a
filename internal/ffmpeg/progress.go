package ffmpeg

import (
	"regexp"
	"strconv"
)

var reOutTime = regexp.MustCompile(`^out_time_us=(\d+)$`)

// ParseProgress extracts the encoded position in seconds from one line of
// "-progress pipe:1" output. Lines other than out_time_us=<n> (including the
// out_time_us=N/A ffmpeg prints before the first frame) report ok=false.
func ParseProgress(line string) (seconds float64, ok bool) {
	m := reOutTime.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	us, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(us) / 1e6, true
}

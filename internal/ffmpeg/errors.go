package ffmpeg

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes for classifying ffmpeg stderr output. Checked in
// order by [Diagnose]; the first match wins.
var (
	reUnsafeFile = regexp.MustCompile(
		`Unsafe file name|Impossible to open '.*'`)

	reMissingInput = regexp.MustCompile(
		`No such file or directory`)

	reInvalidData = regexp.MustCompile(
		`Invalid data found when processing input|moov atom not found`)

	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`invalid, non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)

	reStreamMismatch = regexp.MustCompile(
		`(?i)Could not find tag for codec|codec frame size is not set|` +
			`Stream specifier .* matches no streams|` +
			`Input link .* parameters .* do not match|` +
			`Media type mismatch between`)

	reEncoderMissing = regexp.MustCompile(
		`Unknown encoder|Encoder not found|Unrecognized option`)

	reMuxQueueOverflow = regexp.MustCompile(
		`Too many packets buffered for output stream`)

	reDiskFull = regexp.MustCompile(
		`No space left on device`)
)

var diagnoses = []struct {
	re  *regexp.Regexp
	msg string
}{
	{reUnsafeFile, "concat demuxer rejected a manifest entry"},
	{reMissingInput, "an input or output path does not exist"},
	{reInvalidData, "a source is not a readable media file"},
	{reStreamMismatch, "sources have incompatible streams (try !filter)"},
	{reTimestampIssue, "timestamp discontinuity between sources (try !filter)"},
	{reEncoderMissing, "encoder or option not supported by this ffmpeg build"},
	{reMuxQueueOverflow, "mux queue overflow"},
	{reDiskFull, "output disk is full"},
}

// Diagnose returns a short human-readable cause for a failed encode, or ""
// when stderr matches no known failure.
func Diagnose(stderr []string) string {
	text := strings.Join(stderr, "\n")
	for _, d := range diagnoses {
		if d.re.MatchString(text) {
			return d.msg
		}
	}
	return ""
}

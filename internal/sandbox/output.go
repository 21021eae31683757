package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage is returned for languages without a toolchain.
var ErrUnsupportedLanguage = errors.New("unsupported language")

const timeLimitMarker = "[time limit exceeded]"

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	buf       strings.Builder
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

// candidateOutput is what the grader compares with the expected output.
// Failed runs carry a diagnostic tail, so they never match.
func candidateOutput(stdout, stderr string, exitCode int, timedOut bool) string {
	switch {
	case timedOut:
		return stdout + "\n" + timeLimitMarker
	case exitCode != 0:
		return fmt.Sprintf("%s\n[exit status %d]\n%s", stdout, exitCode, stderr)
	}
	return stdout
}

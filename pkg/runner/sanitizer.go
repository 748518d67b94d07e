package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxUtteranceSize is 4KB, far above any spoken turn.
	DefaultMaxUtteranceSize = 4096
	// EnvMaxUtteranceSize is the environment variable to override the default.
	EnvMaxUtteranceSize = "VOICELOOP_MAX_UTTERANCE_SIZE"
)

var (
	ErrUtteranceTooLarge = errors.New("utterance exceeds maximum allowed size")
	ErrInvalidUTF8       = errors.New("utterance contains invalid UTF-8 sequences")
)

// SanitizeUtterance cleans recognized text before it enters the history:
// it enforces a size limit, validates UTF-8 and strips control characters.
func SanitizeUtterance(input string) (string, error) {
	limit := maxUtteranceSize()
	if len(input) > limit {
		// Rejected, never truncated.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrUtteranceTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxUtteranceSize() int {
	if val := os.Getenv(EnvMaxUtteranceSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxUtteranceSize
}

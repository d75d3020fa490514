package core

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
)

// maxHandleAttempts bounds the rejection-sampling loop generateHandle runs
// before giving up; with 30x30 combinations the birthday bound on a
// registry with a handful of live agents makes exhaustion effectively
// impossible, but an unbounded loop is still a bug waiting to happen.
const maxHandleAttempts = 256

var namePattern = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// ValidateName reports whether name satisfies the user-supplied id rule:
// lowercase alphanumerics and hyphens, 1-64 chars.
func ValidateName(name string) bool {
	return namePattern.MatchString(name)
}

// generateHandle draws a random adjective+noun pair, rejection-sampling
// against taken until a free handle is found or attempts are exhausted.
func generateHandle(taken func(string) bool) (string, error) {
	for i := 0; i < maxHandleAttempts; i++ {
		a, err := randomIndex(len(adjectives))
		if err != nil {
			return "", err
		}
		n, err := randomIndex(len(nouns))
		if err != nil {
			return "", err
		}
		handle := fmt.Sprintf("%s-%s", adjectives[a], nouns[n])
		if !taken(handle) {
			return handle, nil
		}
	}
	return "", NewError(ErrorKindInternal, "generateHandle", fmt.Errorf("no free handle after %d attempts", maxHandleAttempts))
}

func randomIndex(n int) (int, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(n)), nil
}

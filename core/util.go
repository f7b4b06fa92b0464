package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random entity ID.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id looks like an entity ID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Now returns the current time in UTC, truncated to microseconds (postgres precision).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests.
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // not in a source tree (eg. deployed binary)
		}
		currDir = newDir
	}
}

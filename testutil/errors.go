/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stretchr/testify/require"
)

// RequireNoErrorInChannel asserts that a buffered error channel (e.g. fatal errors of a service.Unit)
// is either empty or holds nil. It never blocks.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	select {
	case err := <-c:
		require.NoError(t, err, msgAndArgs...)
	default:
	}
}

// RequireErrorIsAny asserts that errors.Is(err, target) holds for at least one of targets.
// Useful when a shutdown may legitimately fail in several ways (e.g. stop timeout or context deadline).
func RequireErrorIsAny(t require.TestingT, err error, targets []error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	quoted := make([]string, 0, len(targets))
	for _, target := range targets {
		if errors.Is(err, target) {
			return
		}
		quoted = append(quoted, fmt.Sprintf("%q", target.Error()))
	}
	msg := fmt.Sprintf("None of the target errors is in err chain:\nexpected any of: [%s]\nchain: %s",
		strings.Join(quoted, "; "), errorChain(err))
	require.FailNow(t, msg, msgAndArgs...)
}

// errorChain renders err and everything it wraps via errors.Unwrap, one error per line.
func errorChain(err error) string {
	var sb strings.Builder
	for ; err != nil; err = errors.Unwrap(err) {
		if sb.Len() != 0 {
			sb.WriteString("\n\t")
		}
		fmt.Fprintf(&sb, "%q", err.Error())
	}
	return sb.String()
}

package testutil

import "testing"

// Given, When, and Then wrap subtests so scenario tests read as a narrative.
// Each level is a plain t.Run, so go test -run can still address the nested
// steps by name.
func Given(t *testing.T, condition string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+condition, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+outcome, fn)
}

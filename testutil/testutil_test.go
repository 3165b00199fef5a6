/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

// MockT records failures of the assertion helpers instead of failing the running test.
type MockT struct {
	Failed bool
	Format string
	Args   []interface{}
}

func (t *MockT) Helper() {}

func (t *MockT) FailNow() { t.Failed = true }

func (t *MockT) Errorf(format string, args ...interface{}) { t.Format, t.Args = format, args }

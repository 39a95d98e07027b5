package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSQLiteConflictError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("exec: SQLITE_BUSY (5)"), true},
		{"locked", errors.New("database is locked"), true},
		{"table locked", errors.New("database table is locked"), true},
		{"other", errors.New("no such table: conversations"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSQLiteConflictError(tt.err))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "héł", Truncate("héłło", 3))
}

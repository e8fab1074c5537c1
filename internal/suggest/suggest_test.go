package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"marks", "marks", 0},
		{"mark", "marks", 1},
		{"studnets", "students", 2},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosestCollections(t *testing.T) {
	names := []string{"centers", "students", "applications", "marks", "admins"}

	assert.Equal(t, []string{"students"}, Closest("studnets", names))
	assert.Equal(t, []string{"centers"}, Closest("Centres", names))
	assert.Equal(t, []string{"applications"}, Closest("app", names))
	assert.Empty(t, Closest("teachers-and-staff", names))
	assert.Empty(t, Closest("", names))
}

func TestClosestFlags(t *testing.T) {
	flags := []string{"--email", "--password", "--json", "--markdown"}

	got := Closest("--pasword", flags)
	if assert.NotEmpty(t, got) {
		assert.Equal(t, "--password", got[0])
	}
	assert.LessOrEqual(t, len(Closest("x", []string{"a", "b", "c", "d", "e"})), 3)
}

func TestGetFlagHint(t *testing.T) {
	assert.Equal(t, "--password", GetFlagHint("--pass"))
	assert.Equal(t, "--dob", GetFlagHint("--date-of-birth=2001-02-03"))
	assert.Equal(t, "--yes, -y", GetFlagHint("FORCE"))
	assert.Equal(t, "", GetFlagHint("--nothing-like-this"))
}

// Package suggest provides fuzzy matching for CLI flag and collection
// suggestions using Levenshtein distance.
package suggest

import (
	"sort"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Closest returns up to three candidates near unknown, best first. Matching
// ignores case and leading dashes.
func Closest(unknown string, candidates []string) []string {
	unknown = normalize(unknown)
	if unknown == "" {
		return nil
	}

	type scored struct {
		name  string
		score int
	}
	var matches []scored
	maxDist := max(2, len(unknown)/2)
	for _, c := range candidates {
		norm := normalize(c)
		dist := levenshtein(unknown, norm)
		if strings.HasPrefix(norm, unknown) && dist > 0 {
			// typed a prefix: "stud" for "students"
			dist = 1
		}
		if dist <= maxDist {
			matches = append(matches, scored{c, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].name)
	}
	return result
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimLeft(s, "-"))
}

// CommonFlagAliases maps commonly attempted flags to their correct names
var CommonFlagAliases = map[string]string{
	"user":     "--email",
	"username": "--email",
	"login":    "--email",
	"pass":     "--password",
	"pw":       "--password",

	"registration":    "--registration-id",
	"reg":             "--registration-id",
	"date-of-birth":   "--dob",
	"birthday":        "--dob",
	"birth-date":      "--dob",
	"registration_id": "--registration-id",

	"field":     "--set, -s",
	"json-data": "--data",
	"body":      "--data",
	"input":     "--file, -f",

	"force":   "--yes, -y",
	"confirm": "--yes, -y",

	"url":     "--api",
	"server":  "--api",
	"db":      "--store",
	"offline": "--ephemeral, or run 'imtti local show'",
	"format":  "--json or --markdown",
	"output":  "--json or --markdown",
	"debug":   "--verbose, -v",
}

// GetFlagHint returns a hint for a commonly misused flag
func GetFlagHint(flag string) string {
	flag = normalize(flag)
	if i := strings.IndexByte(flag, '='); i >= 0 {
		flag = flag[:i]
	}
	return CommonFlagAliases[flag]
}

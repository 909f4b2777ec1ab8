package rules

import (
	"sort"
	"strings"
)

// maxHintDistance is the largest edit distance that still counts as a near miss.
const maxHintDistance = 2

// minHintLength keeps short method names like "Go" from matching every hook.
const minHintLength = 4

// Hint reports a method whose name looks like a lifecycle hook but is not one,
// for example "update" or "Updte". Such methods are left untouched by the rewrite.
type Hint struct {
	Method      string   `json:"method"`
	Suggestions []string `json:"suggestions"`
}

// NearMisses returns the lifecycle keys close to method, sorted by distance then name.
// An exact key yields nil.
func (tb *Tables) NearMisses(method string) []string {
	if _, ok := tb.lifecycle[method]; ok || len(method) < minHintLength {
		return nil
	}

	type candidate struct {
		name     string
		distance int
	}

	var (
		dist       distance
		candidates []candidate
	)

	for name := range tb.lifecycle {
		score := dist.between(method, name)
		if strings.EqualFold(method, name) {
			score = 0
		}

		if score <= maxHintDistance {
			candidates = append(candidates, candidate{name: name, distance: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}

		return candidates[i].name < candidates[j].name
	})

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.name)
	}

	if len(names) == 0 {
		return nil
	}

	return names
}

// distance computes Levenshtein edit distances reusing one column buffer.
type distance struct {
	column []int
}

func (d *distance) between(source, target string) int {
	src := []rune(source)
	dst := []rune(target)

	if len(dst) == 0 {
		return len(src)
	}

	if cap(d.column) < len(src)+1 {
		d.column = make([]int, len(src)+1)
	}

	column := d.column[:len(src)+1]
	for idx := range column {
		column[idx] = idx
	}

	for col, dstRune := range dst {
		column[0] = col + 1
		diagonal := col

		for row, srcRune := range src {
			above := column[row+1]

			cost := 1
			if srcRune == dstRune {
				cost = 0
			}

			column[row+1] = min(above+1, column[row]+1, diagonal+cost)
			diagonal = above
		}
	}

	return column[len(src)]
}

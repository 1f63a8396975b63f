package result

import "strconv"

// UniqueColumns renames every occurrence of a repeated name to name_k, with
// k counting occurrences from 1 left to right. [A, A, B, A] becomes
// [A_1, A_2, B, A_3]. A suffixed name that already exists is skipped, so
// [A, A, A_1] becomes [A_2, A_3, A_1].
func UniqueColumns(columns []string) []string {
	counts := make(map[string]int, len(columns))
	for _, column := range columns {
		counts[column]++
	}

	taken := make(map[string]bool, len(columns))
	for _, column := range columns {
		if counts[column] == 1 {
			taken[column] = true
		}
	}

	next := make(map[string]int)
	unique := make([]string, len(columns))
	for i, column := range columns {
		if counts[column] == 1 {
			unique[i] = column
			continue
		}
		k := next[column] + 1
		candidate := column + "_" + strconv.Itoa(k)
		for taken[candidate] {
			k++
			candidate = column + "_" + strconv.Itoa(k)
		}
		next[column] = k
		taken[candidate] = true
		unique[i] = candidate
	}
	return unique
}

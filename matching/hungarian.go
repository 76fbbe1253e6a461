package matching

import (
	"sort"

	"github.com/arthurkushman/go-hungarian"
)

// AssignMax solves the assignment problem maximizing total score.
// scores is rows x columns and may be rectangular; it is padded with zeros to a square matrix.
// Only pairs with positive score are returned, ordered by row.
func AssignMax(scores [][]float64) [][2]int {
	numRows := len(scores)
	if numRows == 0 {
		return [][2]int{}
	}
	numCols := len(scores[0])
	if numCols == 0 {
		return [][2]int{}
	}

	paddedSize := maxInt(numRows, numCols)
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
		if i < numRows {
			copy(paddedMatrix[i], scores[i])
		}
	}

	assignmentsMap := hungarian.SolveMax(paddedMatrix)
	// Convert map[int]map[int]float64 to [][2]int
	assignments := make([][2]int, 0, len(assignmentsMap))
	for row, rowMap := range assignmentsMap {
		// Inner map holds a single entry: {column: score}
		for col := range rowMap {
			if row < numRows && col < numCols && scores[row][col] > 0 {
				assignments = append(assignments, [2]int{row, col})
			}
			break
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i][0] < assignments[j][0] })
	return assignments
}

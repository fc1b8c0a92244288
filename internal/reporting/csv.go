package reporting

import (
	"fmt"
	"strings"

	"station-forecast-lab/internal/training"
)

// RenderImportanceCSV renders feature importances as CSV string.
func RenderImportanceCSV(importances []training.FeatureImportance) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,feature,importance\n")

	// Rows
	for i, fi := range importances {
		sb.WriteString(fmt.Sprintf("%d,%s,%.6f\n", i+1, fi.Feature, fi.Importance))
	}

	return sb.String()
}

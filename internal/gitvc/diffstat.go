package gitvc

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffStat condenses a unified diff into a "+added -deleted" summary for
// progress output.
func DiffStat(unified string) (string, error) {
	if unified == "" {
		return "", nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return "", fmt.Errorf("parse diff: %w", err)
	}

	var added, deleted int
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
					added++
				case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
					deleted++
				}
			}
		}
	}
	return fmt.Sprintf("+%d -%d", added, deleted), nil
}

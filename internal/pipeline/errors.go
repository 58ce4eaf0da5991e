package pipeline

import (
	"errors"
	"fmt"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// ErrDuplicateCaseFile rejects a run listing the same tax ID and case number twice.
var ErrDuplicateCaseFile = errors.New("duplicate case file")

// ValidateCaseFiles rejects inputs that would make two workers share a folder.
func ValidateCaseFiles(files []types.CaseFile) error {
	seen := make(map[string]bool, len(files))
	for _, c := range files {
		if c.TaxID == "" || c.CaseNumber == "" {
			return fmt.Errorf("%w: case file without tax id or case number", types.ErrInvalidRequest)
		}
		key := c.Key()
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateCaseFile, key)
		}
		seen[key] = true
	}
	return nil
}

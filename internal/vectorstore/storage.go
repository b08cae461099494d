package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultLocation mirrors the folder name used by the original app.
const DefaultLocation = "faiss_index"

// Store persists whole indexes under a named location. Saving replaces
// whatever was stored at that location before.
type Store interface {
	Save(ctx context.Context, location string, ix *Index) error
	// Load returns domain.ErrIndexNotFound when nothing was saved at location.
	Load(ctx context.Context, location string) (*Index, error)
	Exists(ctx context.Context, location string) (bool, error)
}

// ValidateLocation rejects names that could escape a backend's namespace.
func ValidateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return errors.New("empty index location")
	}
	if strings.ContainsAny(location, `/\`) || location == "." || location == ".." {
		return fmt.Errorf("invalid index location %q", location)
	}
	return nil
}

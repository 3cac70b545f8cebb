package sheets

import (
	"context"

	"kitty/internal/core"
)

// Ports for outbound adapters.
type ArchiveWriter interface {
	// AppendHandover appends a closed period with its expenses to the
	// archive and returns a reference to the written range.
	AppendHandover(ctx context.Context, p core.Period, expenses []core.Expense) (rowRef string, err error)
}

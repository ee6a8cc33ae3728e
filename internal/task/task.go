package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/generation"
	"github.com/phrazzld/inkwell-api/internal/ledger"
)

// Common errors
var (
	ErrNilJobStore     = errors.New("job store cannot be nil")
	ErrNilArticleStore = errors.New("article store cannot be nil")
	ErrNilLedger       = errors.New("ledger cannot be nil")
	ErrNilAssembler    = errors.New("assembler cannot be nil")
	ErrNilQueue        = errors.New("queue cannot be nil")
	ErrNilProcessor    = errors.New("processor cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
)

// Processor handles one delivered job. A nil return acknowledges the
// delivery; an error returns it to the queue for a later attempt.
type Processor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, jobID uuid.UUID) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, jobID uuid.UUID) error {
	return f(ctx, jobID)
}

// ArticleAssembler produces the article for one title.
type ArticleAssembler interface {
	Assemble(ctx context.Context, title string, cfg domain.GenerationConfig) (*generation.AssembledArticle, error)
}

// CreditSettler reconciles a job's reservation once the job is finished.
type CreditSettler interface {
	Settle(ctx context.Context, req ledger.SettleRequest) (*ledger.Settlement, error)
	RefundReservation(ctx context.Context, req ledger.RefundRequest) error
	Charged(ctx context.Context, owner uuid.UUID, reference string) (int64, error)
}

var (
	_ ArticleAssembler = (*generation.Assembler)(nil)
	_ CreditSettler    = (*ledger.Ledger)(nil)
)

package conversation_documents

import (
	"context"

	"github.com/google/uuid"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error)
	MarkDocuments(ctx context.Context, in domainagg.MarkDocumentsInput) error
}

type DocumentBuilder interface {
	Build(ctx context.Context, snap *domainagg.ConversationSnapshot) (*documents.Artifacts, error)
}

type EmailRequester interface {
	RequestConversationEmail(ctx context.Context, conversationID uuid.UUID, resend bool) (*types.JobRun, error)
}

type Pipeline struct {
	log     *logger.Logger
	store   Store
	builder DocumentBuilder
	email   EmailRequester
	events  consultant.EventPublisher
}

// New wires the pipeline. email and events may be nil.
func New(
	baseLog *logger.Logger,
	store Store,
	builder DocumentBuilder,
	email EmailRequester,
	events consultant.EventPublisher,
) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", services.JobTypeConversationDocuments),
		store:   store,
		builder: builder,
		email:   email,
		events:  events,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeConversationDocuments }

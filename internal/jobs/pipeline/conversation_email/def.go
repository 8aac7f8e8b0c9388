package conversation_email

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error)
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Pipeline struct {
	log    *logger.Logger
	store  Store
	email  services.EmailService
	events consultant.EventPublisher
	now    func() time.Time
}

func New(baseLog *logger.Logger, store Store, email services.EmailService, events consultant.EventPublisher) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", services.JobTypeConversationEmail),
		store:  store,
		email:  email,
		events: events,
		now:    time.Now,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeConversationEmail }

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
)

// NotificationService turns ticket events into emails for the ticket's
// creator.
type NotificationService struct {
	dispatcher events.Dispatcher
	emails     *EmailService
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, emails *EmailService, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		emails:     emails,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.Ticket.ID))
	n.send(ctx, event.Ticket, n.cfg.DefaultSenderID,
		"Ticket Received: "+event.Ticket.ID,
		fmt.Sprintf("We have received your ticket \"%s\". Our team is working on it and will contact you soon.", event.Ticket.Subject))
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.Ticket.ID), zap.Any("payload", event.Payload))
	n.send(ctx, event.Ticket, n.cfg.DefaultSenderID,
		"Ticket Assigned: "+event.Ticket.ID,
		fmt.Sprintf("Your ticket \"%s\" has been assigned to our team and is being worked on.", event.Ticket.Subject))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.Ticket.ID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.NewStatus != domain.TicketStatusResolved || payload.OldStatus == domain.TicketStatusResolved {
		return nil
	}
	from := event.Ticket.AssignedTo
	if from == "" {
		from = n.cfg.DefaultSenderID
	}
	n.send(ctx, event.Ticket, from,
		"Ticket Resolved: "+event.Ticket.ID,
		fmt.Sprintf("Your ticket \"%s\" has been resolved. Thank you for using our support system.", event.Ticket.Subject))
	return nil
}

func (n *NotificationService) send(ctx context.Context, ticket domain.Ticket, from, subject, body string) {
	email := n.emails.CreateEmail(ctx, CreateEmailInput{
		ToUserID:   ticket.CreatedBy,
		FromUserID: from,
		Subject:    subject,
		Body:       body,
	})
	n.logger.Debug("notification email created",
		zap.String("email_id", email.ID),
		zap.String("to", email.ToUserID),
		zap.String("subject", email.Subject))
}

package service

import (
	"context"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/event"
)

// NotificationService turns domain events into notifier calls
type NotificationService interface {
	// Register subscribes the notification handlers on d
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeWorkflowSubmitted, "notify-workflow-submitted", s.handleApproval)
	d.SubscribeNamed(event.TypeApprovalApproved, "notify-approval-approved", s.handleApproval)
	d.SubscribeNamed(event.TypeAdjustmentCreated, "notify-adjustment-created", s.handleAdjustment)
	d.SubscribeNamed(event.TypeAdjustmentApproved, "notify-adjustment-approved", s.handleAdjustment)
	d.SubscribeNamed(event.TypeAdjustmentRejected, "notify-adjustment-rejected", s.handleAdjustment)
}

func (s *notificationServiceImpl) handleApproval(ctx context.Context, evt *event.Event) error {
	notice := port.ApprovalNotice{
		RecordID:  evt.RecordID,
		Title:     evt.GetPayloadString(event.KeyTitle),
		Client:    evt.GetPayloadString(event.KeyClient),
		Stage:     evt.GetPayloadString(event.KeyStage),
		ActorName: evt.GetPayloadString(event.KeyActorName),
		Outcome:   evt.GetPayloadString(event.KeyOutcome),
		Comment:   evt.GetPayloadString(event.KeyComment),
	}
	if err := s.notifier.SendApprovalEvent(ctx, notice); err != nil {
		return err
	}
	s.logger.Info("Approval notification sent", "record_id", evt.RecordID, "event_type", evt.Type)
	return nil
}

func (s *notificationServiceImpl) handleAdjustment(ctx context.Context, evt *event.Event) error {
	notice := port.AdjustmentNotice{
		RecordID:   evt.RecordID,
		RequestID:  evt.GetPayloadInt(event.KeyRequestID),
		Title:      evt.GetPayloadString(event.KeyTitle),
		Client:     evt.GetPayloadString(event.KeyClient),
		Hours:      evt.GetPayloadFloat(event.KeyHours),
		Reason:     evt.GetPayloadString(event.KeyReason),
		ActorName:  evt.GetPayloadString(event.KeyActorName),
		Recipients: evt.GetPayloadStrings(event.KeyRecipients),
	}

	var err error
	switch evt.Type {
	case event.TypeAdjustmentCreated:
		err = s.notifier.SendRequestCreated(ctx, notice)
	case event.TypeAdjustmentApproved:
		err = s.notifier.SendRequestApproved(ctx, notice)
	case event.TypeAdjustmentRejected:
		err = s.notifier.SendRequestRejected(ctx, notice)
	}
	if err != nil {
		return err
	}
	s.logger.Info("Adjustment notification sent",
		"record_id", evt.RecordID,
		"request_id", notice.RequestID,
		"event_type", evt.Type,
		"recipients", len(notice.Recipients),
	)
	return nil
}

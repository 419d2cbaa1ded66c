package lark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
)

// NotifierConfig selects where notifications are delivered
type NotifierConfig struct {
	// ChatID receives every notification as a text message
	ChatID string
	// EmailPosts sends adjustment notices to each recipient's mailbox
	EmailPosts bool
	// RecordURL is a printf pattern taking the record id, e.g. https://app/records/%d
	RecordURL string
}

// Notifier implements port.Notifier by posting to a Lark chat and, for
// adjustment requests, to individual recipients by email
type Notifier struct {
	sender port.MessageSender
	cfg    NotifierConfig
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sender port.MessageSender, cfg NotifierConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		cfg:    cfg,
		logger: logger,
	}
}

func (n *Notifier) SendApprovalEvent(ctx context.Context, notice port.ApprovalNotice) error {
	var b strings.Builder
	switch notice.Outcome {
	case "submitted":
		fmt.Fprintf(&b, "Submitted for approval: %s", n.subject(notice.Title, notice.Client))
		if notice.Stage != "" {
			fmt.Fprintf(&b, "\nStages: %s", notice.Stage)
		}
	default:
		fmt.Fprintf(&b, "%s at %s: %s", outcomeLabel(notice.Outcome), notice.Stage, n.subject(notice.Title, notice.Client))
		if notice.ActorName != "" {
			fmt.Fprintf(&b, "\nBy: %s", notice.ActorName)
		}
	}
	if notice.Comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", notice.Comment)
	}
	if link := n.link(notice.RecordID); link != "" {
		fmt.Fprintf(&b, "\n%s", link)
	}
	return n.toChat(ctx, b.String())
}

func (n *Notifier) SendRequestCreated(ctx context.Context, notice port.AdjustmentNotice) error {
	title := "Hours removal requested: " + n.subject(notice.Title, notice.Client)
	lines := []string{
		fmt.Sprintf("Requested by: %s", notice.ActorName),
		fmt.Sprintf("Hours to remove: %s", formatHours(notice.Hours)),
	}
	return n.sendAdjustment(ctx, title, n.withReason(lines, "Reason", notice), notice)
}

func (n *Notifier) SendRequestApproved(ctx context.Context, notice port.AdjustmentNotice) error {
	title := "Hours removal approved: " + n.subject(notice.Title, notice.Client)
	lines := []string{
		fmt.Sprintf("Approved by: %s", notice.ActorName),
		fmt.Sprintf("Hours removed: %s", formatHours(notice.Hours)),
	}
	return n.sendAdjustment(ctx, title, n.withReason(lines, "Comment", notice), notice)
}

func (n *Notifier) SendRequestRejected(ctx context.Context, notice port.AdjustmentNotice) error {
	title := "Hours removal rejected: " + n.subject(notice.Title, notice.Client)
	lines := []string{fmt.Sprintf("Rejected by: %s", notice.ActorName)}
	return n.sendAdjustment(ctx, title, n.withReason(lines, "Reason", notice), notice)
}

// sendAdjustment posts to every recipient and the chat. Each delivery is
// attempted; failures are joined.
func (n *Notifier) sendAdjustment(ctx context.Context, title string, lines []string, notice port.AdjustmentNotice) error {
	if link := n.link(notice.RecordID); link != "" {
		lines = append(lines, link)
	}

	var errs []error
	if n.cfg.EmailPosts {
		for _, email := range notice.Recipients {
			if err := n.sender.SendPost(ctx, ReceiveIDEmail, email, title, lines); err != nil {
				n.logger.Error("Failed to notify recipient",
					zap.Int64("request_id", notice.RequestID),
					zap.String("email", email),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("notify %s: %w", email, err))
			}
		}
	}

	if err := n.toChat(ctx, title+"\n"+strings.Join(lines, "\n")); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *Notifier) toChat(ctx context.Context, text string) error {
	if n.cfg.ChatID == "" {
		return nil
	}
	if err := n.sender.SendText(ctx, ReceiveIDChat, n.cfg.ChatID, text); err != nil {
		return fmt.Errorf("notify chat: %w", err)
	}
	return nil
}

func (n *Notifier) withReason(lines []string, label string, notice port.AdjustmentNotice) []string {
	if notice.Reason == "" {
		return lines
	}
	return append(lines, fmt.Sprintf("%s: %s", label, notice.Reason))
}

func (n *Notifier) subject(title, client string) string {
	if title == "" {
		title = "(untitled)"
	}
	if client == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, client)
}

func (n *Notifier) link(recordID int64) string {
	if n.cfg.RecordURL == "" || recordID == 0 {
		return ""
	}
	return fmt.Sprintf(n.cfg.RecordURL, recordID)
}

func outcomeLabel(outcome string) string {
	switch outcome {
	case "approved":
		return "Approved"
	case "rejected":
		return "Rejected"
	case "skipped":
		return "Skipped"
	}
	return "Updated"
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}

var _ port.Notifier = (*Notifier)(nil)

package port

import "context"

// ApprovalNotice describes a primary-workflow event worth telling people about
type ApprovalNotice struct {
	RecordID  int64
	Title     string
	Client    string
	Stage     string
	ActorName string
	Outcome   string
	Comment   string
}

// AdjustmentNotice describes an adjustment request event. Recipients are
// email addresses; an empty list means the configured channel only.
type AdjustmentNotice struct {
	RecordID   int64
	RequestID  int64
	Title      string
	Client     string
	Hours      float64
	Reason     string
	ActorName  string
	Recipients []string
}

// Notifier delivers workflow notifications. Every call may fail
// independently; callers treat failures as best-effort.
type Notifier interface {
	SendApprovalEvent(ctx context.Context, notice ApprovalNotice) error
	SendRequestCreated(ctx context.Context, notice AdjustmentNotice) error
	SendRequestApproved(ctx context.Context, notice AdjustmentNotice) error
	SendRequestRejected(ctx context.Context, notice AdjustmentNotice) error
}

// MessageSender sends raw messages through a chat provider
type MessageSender interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) error
	SendPost(ctx context.Context, receiveIDType, receiveID, title string, lines []string) error
}

package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
)

// Receive id types accepted by the IM API
const (
	ReceiveIDChat   = "chat_id"
	ReceiveIDEmail  = "email"
	ReceiveIDOpenID = "open_id"
)

const (
	msgTypeText = "text"
	msgTypePost = "post"
	postLocale  = "en_us"
)

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender on the Lark IM API
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: sdk.GetClient().Im.Message,
		logger:   logger,
	}
}

// SendText sends a plain text message
func (m *Messenger) SendText(ctx context.Context, receiveIDType, receiveID, text string) error {
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}
	_, err = m.send(ctx, receiveIDType, receiveID, msgTypeText, string(content))
	return err
}

// SendPost sends a rich-text post with one paragraph per line
func (m *Messenger) SendPost(ctx context.Context, receiveIDType, receiveID, title string, lines []string) error {
	paragraphs := make([][]map[string]string, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, []map[string]string{{"tag": "text", "text": line}})
	}

	content, err := json.Marshal(map[string]interface{}{
		postLocale: map[string]interface{}{
			"title":   title,
			"content": paragraphs,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal post content: %w", err)
	}
	_, err = m.send(ctx, receiveIDType, receiveID, msgTypePost, string(content))
	return err
}

func (m *Messenger) send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	if receiveID == "" {
		return "", fmt.Errorf("receive id cannot be empty")
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id_type", receiveIDType),
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("msg_type", msgType),
		zap.String("receive_id", receiveID))

	return messageID, nil
}

var _ port.MessageSender = (*Messenger)(nil)

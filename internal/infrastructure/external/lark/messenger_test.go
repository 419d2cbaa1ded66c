package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreator struct {
	reqs []*larkim.CreateMessageReq
	resp string
	err  error
}

func (f *fakeCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	resp := &larkim.CreateMessageResp{}
	if err := json.Unmarshal([]byte(f.resp), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func TestMessenger_SendText(t *testing.T) {
	creator := &fakeCreator{resp: `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`}
	m := &Messenger{messages: creator, logger: zap.NewNop()}

	require.NoError(t, m.SendText(context.Background(), ReceiveIDChat, "oc_1", `quote " and newline`+"\n"))
	require.Len(t, creator.reqs, 1)

	body := creator.reqs[0].Body
	assert.Equal(t, "oc_1", *body.ReceiveId)
	assert.Equal(t, "text", *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "quote \" and newline\n", content["text"])
}

func TestMessenger_SendPost(t *testing.T) {
	creator := &fakeCreator{resp: `{"code":0,"data":{"message_id":"om_2"}}`}
	m := &Messenger{messages: creator, logger: zap.NewNop()}

	require.NoError(t, m.SendPost(context.Background(), ReceiveIDEmail, "pm@example.com", "Title", []string{"one", "two"}))

	var content map[string]struct {
		Title   string                `json:"title"`
		Content [][]map[string]string `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(*creator.reqs[0].Body.Content), &content))
	post := content["en_us"]
	assert.Equal(t, "Title", post.Title)
	require.Len(t, post.Content, 2)
	assert.Equal(t, "two", post.Content[1][0]["text"])
}

func TestMessenger_Errors(t *testing.T) {
	m := &Messenger{messages: &fakeCreator{resp: `{"code":230002,"msg":"bot not in chat"}`}, logger: zap.NewNop()}
	err := m.SendText(context.Background(), ReceiveIDChat, "oc_1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")

	m = &Messenger{messages: &fakeCreator{err: errors.New("timeout")}, logger: zap.NewNop()}
	assert.Error(t, m.SendText(context.Background(), ReceiveIDChat, "oc_1", "hi"))

	assert.Error(t, m.SendText(context.Background(), ReceiveIDChat, "", "hi"))
	assert.Error(t, m.SendText(context.Background(), ReceiveIDChat, "oc_1", ""))
}

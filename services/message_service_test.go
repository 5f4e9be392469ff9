package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"campustrade_go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	service := NewMessageService(db, nil, nil)

	msg, err := service.SendMessage(ctx, alice.ID, bob.ID, "  这本书还在吗？ ")
	require.NoError(t, err)
	assert.Equal(t, "这本书还在吗？", msg.Content)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Nickname)
}

func TestSendMessageErrors(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	service := NewMessageService(db, nil, nil)

	tests := []struct {
		name     string
		sender   string
		receiver string
		content  string
		code     utils.ErrorCode
	}{
		{"blank content", alice.ID, bob.ID, "   ", utils.CodeValidation},
		{"too long", alice.ID, bob.ID, strings.Repeat("书", MaxMessageLength+1), utils.CodeValidation},
		{"no receiver", alice.ID, "", "hi", utils.CodeValidation},
		{"to self", alice.ID, alice.ID, "hi", utils.CodeValidation},
		{"unknown sender", "ghost", bob.ID, "hi", utils.CodeUnauthenticated},
		{"unknown receiver", alice.ID, "ghost", "hi", utils.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.SendMessage(ctx, tt.sender, tt.receiver, tt.content)
			assert.True(t, utils.IsCode(err, tt.code), "got %v", err)
		})
	}

	_, err := service.SendMessage(ctx, alice.ID, bob.ID, strings.Repeat("书", MaxMessageLength))
	assert.NoError(t, err)
}

func TestHistoryMarksReceivedAsRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	service := NewMessageService(db, nil, nil)

	for _, content := range []string{"在吗", "还在卖吗", "30元可以吗"} {
		_, err := service.SendMessage(ctx, alice.ID, bob.ID, content)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := service.SendMessage(ctx, bob.ID, alice.ID, "可以")
	require.NoError(t, err)

	unread, err := service.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	messages, total, err := service.GetHistory(ctx, bob.ID, alice.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, messages, 2)
	assert.Equal(t, "可以", messages[0].Content)

	unread, err = service.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// 对方的未读不受影响
	unread, err = service.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestHistoryPaging(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	service := NewMessageService(db, nil, nil)

	for _, content := range []string{"一", "二", "三"} {
		_, err := service.SendMessage(ctx, alice.ID, bob.ID, content)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	// 非法分页参数使用默认值
	messages, total, err := service.GetHistory(ctx, bob.ID, alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, messages, 3)

	messages, _, err = service.GetHistory(ctx, bob.ID, alice.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "一", messages[0].Content)
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	service := NewMessageService(db, nil, nil)

	_, err := service.SendMessage(ctx, bob.ID, alice.ID, "你好")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = service.SendMessage(ctx, carol.ID, alice.ID, "教材还有吗")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = service.SendMessage(ctx, alice.ID, bob.ID, "在的")
	require.NoError(t, err)

	conversations, err := service.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	assert.Equal(t, bob.ID, conversations[0].Peer.ID)
	assert.Equal(t, "在的", conversations[0].LastMessage.Content)
	assert.Equal(t, int64(1), conversations[0].UnreadCount)

	assert.Equal(t, carol.ID, conversations[1].Peer.ID)
	assert.Equal(t, "carol", conversations[1].Peer.Nickname)
	assert.Equal(t, int64(1), conversations[1].UnreadCount)

	empty, err := service.ListConversations(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

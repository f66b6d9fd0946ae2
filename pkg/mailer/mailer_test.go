package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueueSender_Send(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sender := NewRedisQueueSender(client, "")
	assert.Equal(t, "mail:outbox", sender.QueueKey())

	err := sender.Send(context.Background(), &Message{To: "jane@example.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)

	items, err := mr.List("mail:outbox")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(items[0]), &msg))
	assert.Equal(t, "jane@example.com", msg.To)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestRedisQueueSender_SendError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	err := NewRedisQueueSender(client, "q").Send(context.Background(), &Message{To: "x@example.com"})
	assert.Error(t, err)
}

func TestAffiliateMailer(t *testing.T) {
	ctx := context.Background()

	t.Run("审核通过邮件包含推广码", func(t *testing.T) {
		sender := NewMockSender()
		m := NewAffiliateMailer(sender, "Affiliates", "affiliates@example.com")

		require.NoError(t, m.SendApprovalEmail(ctx, "jane@example.com", "Jane Doe", "AFFY-12345678-ABCDEF"))

		sent := sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, TemplateApproval, sent[0].Template)
		assert.Equal(t, "jane@example.com", sent[0].To)
		assert.Equal(t, `"Affiliates" <affiliates@example.com>`, sent[0].From)
		assert.True(t, strings.Contains(sent[0].Body, "AFFY-12345678-ABCDEF"))
		assert.True(t, strings.Contains(sent[0].Body, "Hi Jane Doe"))
	})

	t.Run("拒绝邮件包含原因", func(t *testing.T) {
		sender := NewMockSender()
		m := NewAffiliateMailer(sender, "", "affiliates@example.com")

		require.NoError(t, m.SendRejectionEmail(ctx, "jane@example.com", "Jane Doe", "audience too small"))
		sent := sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "affiliates@example.com", sent[0].From)
		assert.True(t, strings.Contains(sent[0].Body, "Reason: audience too small"))
	})

	t.Run("发送失败返回错误", func(t *testing.T) {
		sender := NewMockSender()
		sender.Err = errors.New("queue full")
		m := NewAffiliateMailer(sender, "", "affiliates@example.com")
		assert.Error(t, m.SendApprovalEmail(ctx, "jane@example.com", "Jane", "AFFY-1"))
	})

	t.Run("经 Redis 队列发送", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		m := NewAffiliateMailer(NewRedisQueueSender(client, "mail:affiliates"), "", "affiliates@example.com")
		require.NoError(t, m.SendRejectionEmail(ctx, "jane@example.com", "Jane", "incomplete"))

		items, err := mr.List("mail:affiliates")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestLogSender_Send(t *testing.T) {
	msg := &Message{To: "jane@example.com"}
	require.NoError(t, NewLogSender(nil).Send(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
}

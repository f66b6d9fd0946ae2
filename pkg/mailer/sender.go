// Package mailer 邮件发送
// 邮件写入 Redis 队列，由独立投递进程发送
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message 待发送邮件
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender 邮件发送器接口
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// RedisQueueSender 写入 Redis 列表的发送器
type RedisQueueSender struct {
	client   redis.Cmdable
	queueKey string
}

// NewRedisQueueSender 创建 Redis 队列发送器
func NewRedisQueueSender(client redis.Cmdable, queueKey string) *RedisQueueSender {
	if queueKey == "" {
		queueKey = "mail:outbox"
	}
	return &RedisQueueSender{
		client:   client,
		queueKey: queueKey,
	}
}

// QueueKey 队列键名
func (s *RedisQueueSender) QueueKey() string {
	return s.queueKey
}

// Send 入队
func (s *RedisQueueSender) Send(ctx context.Context, msg *Message) error {
	stamp(msg)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化邮件失败: %w", err)
	}
	if err := s.client.LPush(ctx, s.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("邮件入队失败: %w", err)
	}
	return nil
}

// LogSender 只记录日志的发送器（用于开发环境）
type LogSender struct {
	log *zap.Logger
}

// NewLogSender 创建日志发送器
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

// Send 记录邮件
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	stamp(msg)
	s.log.Info("邮件已生成",
		zap.String("mail_id", msg.ID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
	)
	return nil
}

// MockSender 模拟发送器（用于测试）
type MockSender struct {
	mu   sync.Mutex
	sent []*Message
	Err  error
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send 模拟发送
func (s *MockSender) Send(ctx context.Context, msg *Message) error {
	if s.Err != nil {
		return s.Err
	}
	stamp(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent 已发送邮件
func (s *MockSender) Sent() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func stamp(msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

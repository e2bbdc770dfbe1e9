//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"sale_inviter/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "exchange-" + name,
		RoutingKey: "sales-" + name,
		QueueName:  "queue-" + name,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("connect"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestNotify_Invited() {
	cfg := s.config("invited")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Notify(s.ctx, domain.Notification{
		Kind:     domain.NotificationInvited,
		Title:    "New Sale Processed",
		SaleID:   "s1",
		Username: "octocat",
		Owner:    "acme",
		Repo:     "course",
		Status:   201,
	})
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(string(domain.NotificationInvited), msg.Type)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
	s.NotEmpty(msg.MessageId)

	var received EventMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(msg.MessageId, received.ID)
	s.Equal("octocat", received.Notification.Username)
	s.Equal("s1", received.Notification.SaleID)
	s.Equal(201, received.Notification.Status)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestNotify_InviteFailed() {
	cfg := s.config("failed")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Notify(s.ctx, domain.Notification{
		Kind:     domain.NotificationInviteFailed,
		SaleID:   "s2",
		Username: "ghost",
		Status:   404,
		Error:    "Not Found",
	})
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received EventMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(string(domain.NotificationInviteFailed), received.Type)
	s.Equal("Not Found", received.Notification.Error)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}

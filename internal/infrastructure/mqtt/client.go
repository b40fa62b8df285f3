// Package mqtt wraps the paho client with connection management suited to a
// long-running service: TLS, automatic reconnect, and resubscription after a
// broker restart.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/resona-io/resona/internal/shared/config"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// MessageHandler receives an inbound message. Handlers must not block; the
// ingress router hands work off to its own goroutine.
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is a shared broker connection for ingress subscriptions and
// downlink publishes.
type Client struct {
	client pahomqtt.Client
	logger logger.Interface

	mu   sync.Mutex
	subs []subscription
}

// NewClient connects to the broker. Subscriptions registered later are
// replayed on every reconnect.
func NewClient(cfg *config.MQTTConfig, log logger.Interface) (*Client, error) {
	c := &Client{logger: log}

	connectTimeout := defaultConnectTimeout
	if cfg.ConnectTimeoutSec > 0 {
		connectTimeout = time.Duration(cfg.ConnectTimeoutSec) * time.Second
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.CAFile != "" {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		log.Infow("broker connection established", "broker", cfg.BrokerURL)
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warnw("broker connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.NewTransientError("broker connect timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return c, nil
}

func buildTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	caPEM, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read broker CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("broker CA file contains no certificates")
	}

	tlsConfig := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load broker client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Subscribe registers a handler for a topic filter and subscribes now. The
// subscription is replayed on reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: handler})
	c.mu.Unlock()

	return c.subscribeOne(topic, qos, handler)
}

func (c *Client) subscribeOne(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return errors.NewTransientError("subscribe timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	c.logger.Infow("subscribed", "topic", topic, "qos", qos)
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		if err := c.subscribeOne(sub.topic, sub.qos, sub.handler); err != nil {
			c.logger.Errorw("failed to restore subscription", "topic", sub.topic, "error", err)
		}
	}
}

// Publish sends a message, honoring ctx for cancellation on top of the
// client's own publish timeout.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)

	done := make(chan bool, 1)
	go func() {
		done <- token.WaitTimeout(publishTimeout)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case completed := <-done:
		if !completed {
			return errors.NewTransientError("broker publish timed out", topic)
		}
	}

	if err := token.Error(); err != nil {
		return errors.NewTransientError("broker publish failed", topic)
	}
	return nil
}

// Close disconnects after letting in-flight work quiesce.
func (c *Client) Close() {
	c.client.Disconnect(disconnectQuiesceMs)
}

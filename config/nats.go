package config

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectWait   = 5 * time.Second
	natsMaxReconnects = 5
	natsReconnectWait = 2 * time.Second
)

// NATSConn 全局 NATS 连接，未配置时为 nil
var NATSConn *nats.Conn

// InitNATS 连接 NATS，NATS_URL 为空时跳过
func InitNATS() error {
	url := GetEnv("NATS_URL", "")
	if url == "" {
		log.Println("ℹ️  NATS_URL not set, order events will not be published to NATS")
		return nil
	}

	conn, err := nats.Connect(url,
		nats.Name("campustrade order events"),
		nats.Timeout(natsConnectWait),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("⚠️  NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	NATSConn = conn
	log.Println("✅ NATS connected successfully")
	return nil
}

// CloseNATS 关闭 NATS 连接
func CloseNATS() {
	if NATSConn != nil {
		_ = NATSConn.Drain()
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

const pubsubChannel = "grover"

// BroadcastPayload carries a solver result to the replica holding the
// waiting /run request.
type BroadcastPayload struct {
	Data     []byte `json:"data"`
	Success  bool   `json:"success"`
	ErrorMsg string `json:"error_msg"`
}

// resultBroker hands solver results between operator replicas. A published
// result is announced to every replica by correlation ID; the one holding
// the request takes it.
type resultBroker interface {
	publishResult(correlationID string, payload *BroadcastPayload) error
	takeResult(correlationID string) (*BroadcastPayload, error)
}

type redisResultBroker struct {
	redis *redis.Client
	ttl   time.Duration
}

func rkResult(correlationID string) string {
	return fmt.Sprintf("r:%s:i", correlationID)
}

func (b *redisResultBroker) publishResult(correlationID string, payload *BroadcastPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %v", err)
	}
	p := b.redis.Pipeline()
	p.Set(rkResult(correlationID), body, b.ttl)
	p.Publish(pubsubChannel, correlationID)
	if _, err := p.Exec(); err != nil {
		return fmt.Errorf("redis: %v", err)
	}
	return nil
}

func (b *redisResultBroker) takeResult(correlationID string) (*BroadcastPayload, error) {
	key := rkResult(correlationID)
	p := b.redis.Pipeline()
	getCmd := p.Get(key)
	p.Del(key)
	if _, err := p.Exec(); err != nil {
		return nil, fmt.Errorf("redis: %v", err)
	}
	data, _ := getCmd.Result()
	payload := &BroadcastPayload{}
	if err := json.Unmarshal([]byte(data), payload); err != nil {
		return nil, fmt.Errorf("unmarshal: %v", err)
	}
	return payload, nil
}

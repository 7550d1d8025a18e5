package main

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

var errProblemNotFound = fmt.Errorf("problem not found")

// problemStore holds the canonical text of each problem handed to a solver
// until the run finishes. It must be shared by every operator replica,
// since the solver pod may call back into any of them.
type problemStore interface {
	putProblem(correlationID string, data []byte) error
	getProblem(correlationID string) ([]byte, error)
	deleteProblem(correlationID string) error
}

type redisProblemStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func rkProblem(correlationID string) string {
	return fmt.Sprintf("p:%s:i", correlationID)
}

func (s *redisProblemStore) putProblem(correlationID string, data []byte) error {
	if err := s.redis.Set(rkProblem(correlationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: %v", err)
	}
	return nil
}

func (s *redisProblemStore) getProblem(correlationID string) ([]byte, error) {
	data, err := s.redis.Get(rkProblem(correlationID)).Bytes()
	if err == redis.Nil {
		return nil, errProblemNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis: %v", err)
	}
	return data, nil
}

func (s *redisProblemStore) deleteProblem(correlationID string) error {
	if err := s.redis.Del(rkProblem(correlationID)).Err(); err != nil {
		return fmt.Errorf("redis: %v", err)
	}
	return nil
}

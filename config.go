package main

import (
	"fmt"
	"os"
	"time"
)

type config struct {
	redisURI              string
	namespace             string
	image                 string
	appLabel              string
	operatorAddress       string
	listenAddr            string
	timeout               time.Duration
	pruneResultTimeout    time.Duration
	multipartUploadMemory int64
}

func defaultConfig() config {
	return config{
		redisURI:              "localhost:6379",
		namespace:             "default",
		image:                 "thavlik/grover-packer-solver:latest",
		appLabel:              "grover-solver",
		operatorAddress:       "grover-packer:8090",
		listenAddr:            ":8090",
		timeout:               time.Minute * 240,
		pruneResultTimeout:    time.Minute,
		multipartUploadMemory: 1024 * 1024, // 1mb
	}
}

// configFromEnv overlays any set environment variables onto the defaults.
func configFromEnv() (config, error) {
	c := defaultConfig()
	strs := map[string]*string{
		"REDIS_URI":               &c.redisURI,
		"NAMESPACE":               &c.namespace,
		"SOLVER_IMAGE":            &c.image,
		"APP_LABEL":               &c.appLabel,
		"PACKER_OPERATOR_ADDRESS": &c.operatorAddress,
		"LISTEN_ADDR":             &c.listenAddr,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"SOLVER_TIMEOUT":       &c.timeout,
		"PRUNE_RESULT_TIMEOUT": &c.pruneResultTimeout,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return config{}, fmt.Errorf("%s: %v", name, err)
		}
		if d <= 0 {
			return config{}, fmt.Errorf("%s: expected a positive duration, got %v", name, d)
		}
		*dst = d
	}
	return c, nil
}

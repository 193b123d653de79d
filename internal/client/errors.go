package client

import (
	"errors"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/topic"
)

var (
	ErrNotConnected      = errors.New("client: not connected")
	ErrAlreadyConnected  = errors.New("client: already connected")
	ErrInvalidQoS        = errors.New("client: invalid QoS")
	ErrInvalidTopic      = topic.ErrInvalidTopic
	ErrInvalidArgument   = errors.New("client: invalid argument")
	ErrPayloadTooLarge   = errors.New("client: packet exceeds maximum size")
	ErrProtocolViolation = errors.New("client: protocol violation")
	ErrKeepaliveTimeout  = errors.New("client: keepalive timeout")
)

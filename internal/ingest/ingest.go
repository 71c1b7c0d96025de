package ingest

import (
	"errors"

	"rcx-service/internal/models"
)

const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
	SourceMQTT  = "mqtt"
)

// ErrBusy is returned by a Handler that cannot take the tick right now.
var ErrBusy = errors.New("tick queue full")

// Handler accepts one decoded tick from source.
type Handler func(source string, t models.Tick) error

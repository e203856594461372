package bakeryauth

import (
	"io"

	"github.com/MrEthical07/bakeryauth/internal/audit"
	"go.uber.org/zap"
)

// Audit types re-exported for callers outside the module.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
)

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
	KafkaSink      = audit.KafkaSink
	MultiSink      = audit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewZapSink(log *zap.Logger) *ZapSink {
	return audit.NewZapSink(log)
}

// NewKafkaSink publishes audit events to topic on brokers.
func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	return audit.NewKafkaSink(audit.NewKafkaWriter(brokers, topic), log)
}

// Package kafka publishes final tables to Kafka, one Avro-encoded message
// per row, for consumers that want the data as a stream rather than a file.
package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Shopify/sarama"
	"github.com/linkedin/goavro"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Loader publishes each row of each table to the topic TopicPrefix + the
// table name.
type Loader struct {
	TopicPrefix string

	producer sarama.SyncProducer
	codecs   map[string]*goavro.Codec
}

var _ pudl.Loader = (*Loader)(nil)

// NewLoader connects a synchronous producer to the given brokers.
func NewLoader(hosts []string, topicPrefix string) (*Loader, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V0_10_0_0
	config.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(hosts, config)
	if err != nil {
		return nil, errors.Wrap(err, "creating sync producer")
	}
	return NewLoaderWithProducer(producer, topicPrefix), nil
}

// NewLoaderWithProducer wraps an existing producer; tests hand in a mock.
func NewLoaderWithProducer(producer sarama.SyncProducer, topicPrefix string) *Loader {
	return &Loader{
		TopicPrefix: topicPrefix,
		producer:    producer,
		codecs:      make(map[string]*goavro.Codec),
	}
}

func (l *Loader) Load(ctx context.Context, tables map[string]*pudl.Table) error {
	for name, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.publishTable(t); err != nil {
			return errors.Wrapf(err, "publishing table %s", name)
		}
	}
	return nil
}

func (l *Loader) publishTable(t *pudl.Table) error {
	codec, err := l.codec(t)
	if err != nil {
		return err
	}
	topic := l.TopicPrefix + t.Name
	for row := 0; row < t.Len(); row++ {
		native := make(map[string]interface{}, len(t.Fields()))
		for _, f := range t.Fields() {
			v, err := t.Value(row, f.Name())
			if err != nil {
				return err
			}
			native[f.Name()] = avroValue(f, v)
		}
		data, err := codec.BinaryFromNative(nil, native)
		if err != nil {
			return errors.Wrapf(err, "encoding row %d", row)
		}
		_, _, err = l.producer.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(data),
		})
		if err != nil {
			return errors.Wrapf(err, "sending row %d", row)
		}
	}
	log.Printf("kafka: published %d rows to %s", t.Len(), topic)
	return nil
}

func (l *Loader) codec(t *pudl.Table) (*goavro.Codec, error) {
	if c, ok := l.codecs[t.Name]; ok {
		return c, nil
	}
	schema, err := avroSchema(t)
	if err != nil {
		return nil, err
	}
	c, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, errors.Wrap(err, "creating codec")
	}
	l.codecs[t.Name] = c
	return c, nil
}

func (l *Loader) Close() error {
	return errors.Wrap(l.producer.Close(), "closing producer")
}

// avroSchema builds a record schema where every column is a union of null
// and the column's base type, since any cell can be missing.
func avroSchema(t *pudl.Table) (string, error) {
	fields := make([]map[string]interface{}, len(t.Fields()))
	for i, f := range t.Fields() {
		fields[i] = map[string]interface{}{
			"name": f.Name(),
			"type": []interface{}{"null", avroType(f)},
		}
	}
	schema := map[string]interface{}{
		"type":   "record",
		"name":   t.Name,
		"fields": fields,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(err, "marshalling schema")
	}
	return string(data), nil
}

func avroType(f pudl.Field) string {
	switch f.(type) {
	case pudl.IntField:
		return "long"
	case pudl.FloatField:
		return "double"
	case pudl.BoolField:
		return "boolean"
	case pudl.TimeField:
		// microseconds since epoch
		return "long"
	default:
		return "string"
	}
}

// avroValue wraps a non-nil value in its union branch.
func avroValue(f pudl.Field, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if tv, ok := v.(time.Time); ok {
		return map[string]interface{}{"long": tv.UnixMicro()}
	}
	return map[string]interface{}{avroType(f): v}
}

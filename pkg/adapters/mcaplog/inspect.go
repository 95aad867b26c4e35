package mcaplog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/user/mp4mcap/pkg/framemsg"
	"github.com/user/mp4mcap/pkg/ports"
)

// Message is one record read back from an MCAP file.
type Message struct {
	Topic       string
	Sequence    uint32
	LogTime     uint64
	PublishTime uint64
	Data        []byte

	// Frame is the decoded payload when the channel carries
	// foxglove.CompressedVideo, nil otherwise.
	Frame *framemsg.CompressedFrame
}

// TopicInfo summarises one channel.
type TopicInfo struct {
	Topic           string
	SchemaName      string
	MessageEncoding string
	MessageCount    uint64
}

// Inspection is the content of an MCAP file.
type Inspection struct {
	Library      string
	MessageCount uint64
	StartTime    uint64 // Lowest log time; valid when MessageCount > 0
	EndTime      uint64 // Highest log time; valid when MessageCount > 0
	Topics       []TopicInfo
	Metadata     []ports.LogMetadata
	Messages     []Message
}

// Inspect reads the summary and every message of the MCAP file at path.
func Inspect(path string) (Inspection, error) {
	var result Inspection

	f, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	reader, err := mcap.NewReader(f)
	if err != nil {
		return result, fmt.Errorf("read log: %w", err)
	}

	counts := make(map[string]*TopicInfo)
	err = walk(reader, func(msg Message, channel *mcap.Channel, schema *mcap.Schema) error {
		topic, ok := counts[msg.Topic]
		if !ok {
			topic = &TopicInfo{Topic: msg.Topic, MessageEncoding: channel.MessageEncoding}
			if schema != nil {
				topic.SchemaName = schema.Name
			}
			counts[msg.Topic] = topic
		}
		topic.MessageCount++

		if result.MessageCount == 0 || msg.LogTime < result.StartTime {
			result.StartTime = msg.LogTime
		}
		if result.MessageCount == 0 || msg.LogTime > result.EndTime {
			result.EndTime = msg.LogTime
		}
		result.MessageCount++
		result.Messages = append(result.Messages, msg)
		return nil
	})
	if err != nil {
		return result, err
	}

	// The summary is read after the linear pass; Info seeks.
	info, err := reader.Info()
	if err != nil {
		return result, fmt.Errorf("read summary: %w", err)
	}
	if info.Header != nil {
		result.Library = info.Header.Library
	}
	for _, idx := range info.MetadataIndexes {
		md, err := reader.GetMetadata(idx.Offset)
		if err != nil {
			return result, fmt.Errorf("read metadata %q: %w", idx.Name, err)
		}
		result.Metadata = append(result.Metadata, ports.LogMetadata{
			Name:   md.Name,
			Fields: md.Metadata,
		})
	}

	for _, topic := range counts {
		result.Topics = append(result.Topics, *topic)
	}
	sort.Slice(result.Topics, func(i, j int) bool {
		return result.Topics[i].Topic < result.Topics[j].Topic
	})

	if info.Statistics != nil && info.Statistics.MessageCount != result.MessageCount {
		return result, fmt.Errorf("mcaplog: summary reports %d messages, read %d",
			info.Statistics.MessageCount, result.MessageCount)
	}

	return result, nil
}

// Walk calls fn for every message of the MCAP file at path in file order.
// It does not need a summary section, so partial files can be read too.
func Walk(path string, fn func(Message) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	reader, err := mcap.NewReader(f)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	return walk(reader, func(msg Message, _ *mcap.Channel, _ *mcap.Schema) error {
		return fn(msg)
	})
}

func walk(reader *mcap.Reader, fn func(Message, *mcap.Channel, *mcap.Schema) error) error {
	it, err := reader.Messages(mcap.UsingIndex(false))
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}

	for {
		schema, channel, m, err := it.Next(nil)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		msg := Message{
			Topic:       channel.Topic,
			Sequence:    m.Sequence,
			LogTime:     m.LogTime,
			PublishTime: m.PublishTime,
			Data:        bytes.Clone(m.Data),
		}
		if schema != nil && schema.Name == framemsg.SchemaName {
			frame, err := framemsg.Unmarshal(m.Data)
			if err != nil {
				return fmt.Errorf("decode message %d on %s: %w", m.Sequence, channel.Topic, err)
			}
			msg.Frame = &frame
		}

		if err := fn(msg, channel, schema); err != nil {
			return err
		}
	}
}

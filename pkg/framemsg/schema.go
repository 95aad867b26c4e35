package framemsg

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SchemaName is the fully qualified protobuf message name used as the
// log schema name.
const SchemaName = "foxglove.CompressedVideo"

// SchemaEncoding and MessageEncoding identify protobuf payloads in the log
// container.
const (
	SchemaEncoding  = "protobuf"
	MessageEncoding = "protobuf"
)

const schemaFile = "foxglove/CompressedVideo.proto"

var (
	schemaOnce sync.Once
	schemaData []byte
	schemaErr  error
)

// SchemaData returns a serialized FileDescriptorSet describing
// foxglove.CompressedVideo and its google.protobuf.Timestamp dependency.
func SchemaData() ([]byte, error) {
	schemaOnce.Do(func() {
		schemaData, schemaErr = buildSchema()
	})
	return schemaData, schemaErr
}

// FileDescriptor returns the descriptor proto of the CompressedVideo file.
func FileDescriptor() *descriptorpb.FileDescriptorProto {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(schemaFile),
		Package:    proto.String("foxglove"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("CompressedVideo"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{
					Name:     proto.String("timestamp"),
					JsonName: proto.String("timestamp"),
					Number:   proto.Int32(int32(fieldTimestamp)),
					Label:    optional,
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".google.protobuf.Timestamp"),
				},
				{
					Name:     proto.String("frame_id"),
					JsonName: proto.String("frameId"),
					Number:   proto.Int32(int32(fieldFrameID)),
					Label:    optional,
					Type:     str,
				},
				{
					Name:     proto.String("data"),
					JsonName: proto.String("data"),
					Number:   proto.Int32(int32(fieldData)),
					Label:    optional,
					Type:     descriptorpb.FieldDescriptorProto_TYPE_BYTES.Enum(),
				},
				{
					Name:     proto.String("format"),
					JsonName: proto.String("format"),
					Number:   proto.Int32(int32(fieldFormat)),
					Label:    optional,
					Type:     str,
				},
			},
		}},
	}
}

func buildSchema() ([]byte, error) {
	fdp := FileDescriptor()

	// Resolve against the global registry to catch descriptor mistakes early.
	if _, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles); err != nil {
		return nil, fmt.Errorf("framemsg: invalid schema: %w", err)
	}

	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto),
			fdp,
		},
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("framemsg: marshal schema: %w", err)
	}
	return data, nil
}

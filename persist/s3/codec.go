package s3

import (
	"fmt"

	"github.com/fcruxen/pathtree"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoMarshal encodes a *pathtree.Node as a protobuf Struct holding
// its flat document. Use it as pathtree.StoreConfig.Marshal.
func ProtoMarshal(v interface{}) ([]byte, error) {
	n, ok := v.(*pathtree.Node)
	if !ok {
		return nil, fmt.Errorf("cannot marshal %T, only *pathtree.Node", v)
	}
	s, err := structpb.NewStruct(n.Document())
	if err != nil {
		return nil, fmt.Errorf("struct %s: %w", n.ID, err)
	}
	return proto.Marshal(s)
}

// ProtoUnmarshal decodes what ProtoMarshal produced into a *pathtree.Node.
// Numbers come back as float64.
func ProtoUnmarshal(b []byte, v interface{}) error {
	n, ok := v.(*pathtree.Node)
	if !ok {
		return fmt.Errorf("cannot unmarshal into %T, only *pathtree.Node", v)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := pathtree.NodeFromDocument(s.AsMap())
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

package transport

import (
	"bufio"
	"io"
	"reflect"

	"github.com/ugorji/go/codec"
)

// handle is the msgpack handle shared by encoders and decoders. It must not be
// modified after init.
//
// Strings and []byte are written in the old msgpack "raw" format since Jubatus
// servers do not understand str8/bin. Raw data read back into interface{}
// becomes string and maps become map[string]interface{}.
var handle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = false
	h.RawToString = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}

// nilRaw is the msgpack encoding of nil.
var nilRaw = codec.Raw{0xc0}

// Marshal encodes v with the wire codec.
func Marshal(v interface{}) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes data with the wire codec into v (a pointer). Empty data
// is msgpack nil: a nil element decoded into codec.Raw comes out empty.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		data = nilRaw
	}
	return codec.NewDecoderBytes(data, handle).Decode(v)
}

// NewStreamDecoder creates a decoder reading consecutive messages from r.
func NewStreamDecoder(r io.Reader) *codec.Decoder {
	return codec.NewDecoder(bufio.NewReader(r), handle)
}

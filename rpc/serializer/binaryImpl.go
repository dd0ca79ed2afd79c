package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/nora/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 2 bytes flags (big endian), followed by every field whose flag is set,
// in the order of the flags. Strings and byte slices are prefixed with a 4 byte length.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasPath    uint16 = 1 << 0
	hasValue   uint16 = 1 << 1
	hasHash    uint16 = 1 << 2
	hasSession uint16 = 1 << 3
	hasOpType  uint16 = 1 << 4
	hasWaitMs  uint16 = 1 << 5
	hasOk      uint16 = 1 << 6
	hasErr     uint16 = 1 << 7
	hasCode    uint16 = 1 << 8
	hasMeta    uint16 = 1 << 9
)

const binaryHeaderSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, b.sizeBytes(msg)), pos: binaryHeaderSize}
	var flags uint16

	if msg.Path != "" {
		flags |= hasPath
		w.putBytes([]byte(msg.Path))
	}
	// nil and empty values are different (empty is kept as empty)
	if msg.Value != nil {
		flags |= hasValue
		w.putBytes(msg.Value)
	}
	if msg.Hash != 0 {
		flags |= hasHash
		w.putUint64(msg.Hash)
	}
	if msg.Session != "" {
		flags |= hasSession
		w.putBytes([]byte(msg.Session))
	}
	if msg.OpType != 0 {
		flags |= hasOpType
		w.putByte(msg.OpType)
	}
	if msg.WaitMs != 0 {
		flags |= hasWaitMs
		w.putUint64(msg.WaitMs)
	}
	if msg.Ok {
		flags |= hasOk
		w.putByte(1)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putBytes([]byte(msg.Err))
	}
	if msg.Code != 0 {
		flags |= hasCode
		w.putUint64(msg.Code)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Write header after knowing which fields are present
	w.buf[0] = byte(msg.MsgType)
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < binaryHeaderSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])
	r := binaryReader{data: data, pos: binaryHeaderSize}

	// reset all optional fields, the target message may be reused
	*msg = common.Message{MsgType: msg.MsgType}

	if flags&hasPath != 0 {
		p, err := r.readBytes("path")
		if err != nil {
			return err
		}
		msg.Path = string(p)
	}
	if flags&hasValue != 0 {
		v, err := r.readBytes("value")
		if err != nil {
			return err
		}
		msg.Value = append(make([]byte, 0, len(v)), v...)
	}
	if flags&hasHash != 0 {
		h, err := r.readUint64("hash")
		if err != nil {
			return err
		}
		msg.Hash = h
	}
	if flags&hasSession != 0 {
		s, err := r.readBytes("session")
		if err != nil {
			return err
		}
		msg.Session = string(s)
	}
	if flags&hasOpType != 0 {
		o, err := r.readByte("op type")
		if err != nil {
			return err
		}
		msg.OpType = o
	}
	if flags&hasWaitMs != 0 {
		w, err := r.readUint64("wait")
		if err != nil {
			return err
		}
		msg.WaitMs = w
	}
	if flags&hasOk != 0 {
		o, err := r.readByte("ok flag")
		if err != nil {
			return err
		}
		msg.Ok = o != 0
	}
	if flags&hasErr != 0 {
		e, err := r.readBytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(e)
	}
	if flags&hasCode != 0 {
		c, err := r.readUint64("code")
		if err != nil {
			return err
		}
		msg.Code = c
	}
	if flags&hasMeta != 0 {
		m, err := r.readBytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = append(make([]byte, 0, len(m)), m...)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := binaryHeaderSize

	if msg.Path != "" {
		size += 4 + len(msg.Path)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Hash != 0 {
		size += 8
	}
	if msg.Session != "" {
		size += 4 + len(msg.Session)
	}
	if msg.OpType != 0 {
		size += 1
	}
	if msg.WaitMs != 0 {
		size += 8
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// binaryWriter writes fields into a buffer that was sized by sizeBytes
type binaryWriter struct {
	buf []byte
	pos int
}

func (w *binaryWriter) putByte(v uint8) {
	w.buf[w.pos] = v
	w.pos++
}

func (w *binaryWriter) putUint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:w.pos+8], v)
	w.pos += 8
}

func (w *binaryWriter) putBytes(v []byte) {
	binary.BigEndian.PutUint32(w.buf[w.pos:w.pos+4], uint32(len(v)))
	w.pos += 4
	w.pos += copy(w.buf[w.pos:], v)
}

// binaryReader reads fields and reports which field was truncated
type binaryReader struct {
	data []byte
	pos  int
}

func (r *binaryReader) readByte(field string) (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *binaryReader) readUint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// readBytes returns a slice of the underlying data, callers copy it if they keep it
func (r *binaryReader) readBytes(field string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

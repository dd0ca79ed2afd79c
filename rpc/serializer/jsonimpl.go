package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/nora/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Value and Meta are carried base64 encoded since they are opaque bytes to the protocol.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitted fields must not keep values of a reused message
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}

package persisted

// Serializer builds Data nodes on behalf of a handler.
type Serializer interface {
	SerializeNull() Data
	SerializeString(v string) Data
	SerializeInt(v int64) Data
	SerializeUint(v uint64) Data
	SerializeFloat(v float64) Data
	SerializeBool(v bool) Data
	SerializeArray(items []Data) Data
	SerializeMap(m *ValueMap) Data
}

// DefaultSerializer builds nodes with the package constructors.
type DefaultSerializer struct{}

var _ Serializer = DefaultSerializer{}

func (DefaultSerializer) SerializeNull() Data              { return Null() }
func (DefaultSerializer) SerializeString(v string) Data    { return String(v) }
func (DefaultSerializer) SerializeInt(v int64) Data        { return Int(v) }
func (DefaultSerializer) SerializeUint(v uint64) Data      { return Uint(v) }
func (DefaultSerializer) SerializeFloat(v float64) Data    { return Float(v) }
func (DefaultSerializer) SerializeBool(v bool) Data        { return Bool(v) }
func (DefaultSerializer) SerializeArray(items []Data) Data { return Array(items...) }
func (DefaultSerializer) SerializeMap(m *ValueMap) Data    { return Map(m) }

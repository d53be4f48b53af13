// internal/ec/command.go
package ec

// Command is one request/response envelope.
//
// Data carries both directions: the request payload is Data[:OutSize]
// on the way out, and the response overwrites Data[:n] on the way back.
// len(Data) is always >= max(OutSize, InSize).
type Command struct {
	Version uint32
	Command uint32
	OutSize uint32
	InSize  uint32
	Result  Result
	Data    []byte
}

// NewCommand allocates a record whose payload buffer fits both directions.
func NewCommand(command uint16, version uint8, outSize, inSize int) *Command {
	return &Command{
		Version: uint32(version),
		Command: uint32(command),
		OutSize: uint32(outSize),
		InSize:  uint32(inSize),
		Data:    make([]byte, max(outSize, inSize)),
	}
}

// Request returns the outgoing payload.
func (c *Command) Request() []byte {
	return c.Data[:c.OutSize]
}

// Transport performs exactly one exchange with the device.
//
// Exchange returns the number of response bytes written into cmd.Data and
// records the EC status in cmd.Result. A non-nil error means the message
// could not be delivered or received; the EC status is then meaningless.
type Transport interface {
	Exchange(cmd *Command) (int, error)
	MaxRequest() int
	MaxResponse() int
	Close() error
}

package connection

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// SocketIDGenerator issues ids of the form "<node>.<sequence>". The node part
// is random per generator and the sequence is monotonic, so ids never repeat
// within a process.
type SocketIDGenerator struct {
	node    uint32
	counter atomic.Uint64
}

func NewSocketIDGenerator() *SocketIDGenerator {
	return &SocketIDGenerator{node: uuid.New().ID()}
}

func (g *SocketIDGenerator) Next() string {
	seq := g.counter.Add(1)
	return strconv.FormatUint(uint64(g.node), 10) + "." + strconv.FormatUint(seq, 10)
}

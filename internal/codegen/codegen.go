// Package codegen issues short redemption codes that staff can read aloud.
package codegen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/speps/go-hashids/v2"
)

// Alphabet omits I, O, 0 and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const minLength = 10

// Generator encodes snowflake ids with a salted hashid. Codes are unique per
// node id; run each process with a distinct node.
type Generator struct {
	node *snowflake.Node
	hd   *hashids.HashID
}

func New(nodeID int64, salt string) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = minLength
	data.Alphabet = Alphabet
	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("hashids: %w", err)
	}
	return &Generator{node: node, hd: h}, nil
}

// NewCode returns the next code.
func (g *Generator) NewCode() string {
	code, err := g.hd.EncodeInt64([]int64{g.node.Generate().Int64()})
	if err != nil {
		// Only negative input fails and snowflake ids are positive.
		panic(fmt.Sprintf("codegen: encode: %v", err))
	}
	return code
}

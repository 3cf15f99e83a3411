// Package id generates unique order identifiers.
package id

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator produces unique, roughly time-ordered order ids. Each service
// instance must run with a distinct node id.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a Generator for the given snowflake node id.
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// NextOrderID returns a new unique order id.
func (g *Generator) NextOrderID() int64 {
	return g.node.Generate().Int64()
}

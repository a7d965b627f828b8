package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// The API server and the worker must use different node IDs.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
func New() int64 {
	return node.Generate().Int64()
}

// VendorReference returns a reference handed to the messaging vendor for a send
// that arrived without one. Base58 keeps it short enough for SMS gateways.
func VendorReference() string {
	return "vr_" + node.Generate().Base58()
}

// Format renders an ID the way it travels on streams and in JSON.
func Format(v int64) string {
	return strconv.FormatInt(v, 10)
}

package exaconf

import (
	"strings"

	"github.com/google/uuid"
)

// GenNodeUUID returns a new node UUID: 40 upper-case hex characters taken
// from two random UUIDs.
func GenNodeUUID() NodeUUID {
	hex := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return NodeUUID(strings.ToUpper(hex[:40]))
}

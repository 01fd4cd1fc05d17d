package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "bk-3f2a...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + id.String()
}

package ids

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

func snowflakeNode() *snowflake.Node {
	nodeOnce.Do(func() {
		id := int64(1)
		if v := os.Getenv("CHATSYNC_NODE_ID"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				id = n
			}
		}
		n, err := snowflake.NewNode(id)
		if err != nil {
			panic(fmt.Sprintf("snowflake node init: %v", err))
		}
		node = n
	})
	return node
}

// NewMessageID returns a time-ordered unique message id. Snowflake ids are
// zero-padded to a fixed width so lexical order equals numeric order; this
// property is what message keys and pagination cursors rely on.
func NewMessageID() string {
	return fmt.Sprintf("%019d", snowflakeNode().Generate().Int64())
}

// NewChannelID returns a random channel id.
func NewChannelID() string {
	return "ch-" + uuid.NewString()
}

// NewUserID returns a random user id. Production deployments receive uids
// from the authentication provider; this is used by tests and tooling.
func NewUserID() string {
	return "u-" + uuid.NewString()
}

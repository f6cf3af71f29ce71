package store

import "fmt"

// Key layout. All keys are lowercase; segments are separated by ":".
// Message ids are zero-padded snowflakes, so byte order under a channel
// prefix equals append order.
const (
	channelMetaKey = "channel:%s:meta"   // channel:<channelID>:meta
	messageKey     = "channel:%s:msg:%s" // channel:<channelID>:msg:<messageID>
	messageIdxKey  = "idx:msg:%s"        // idx:msg:<messageID> -> channelID
	userKey        = "user:%s"           // user:<uid>
	userChannelKey = "rel:u:%s:c:%s"     // rel:u:<uid>:c:<channelID>
	directKey      = "direct:%s:%s"      // direct:<uidA>:<uidB> -> channelID
	idemKey        = "idem:%s:%s"        // idem:<channelID>:<client key> -> message
)

// IdemPrefix is scanned by the retention sweeper.
const IdemPrefix = "idem:"

func ChannelMetaKey(channelID string) string { return fmt.Sprintf(channelMetaKey, channelID) }

func MessageKey(channelID, messageID string) string {
	return fmt.Sprintf(messageKey, channelID, messageID)
}

// MessagePrefix is the common prefix of all message keys in a channel.
func MessagePrefix(channelID string) string { return fmt.Sprintf(messageKey, channelID, "") }

func MessageIdxKey(messageID string) string { return fmt.Sprintf(messageIdxKey, messageID) }

func UserKey(uid string) string { return fmt.Sprintf(userKey, uid) }

func UserChannelKey(uid, channelID string) string {
	return fmt.Sprintf(userChannelKey, uid, channelID)
}

// UserChannelPrefix covers every channel membership entry of one user.
func UserChannelPrefix(uid string) string { return fmt.Sprintf(userChannelKey, uid, "") }

func DirectKey(a, b string) string { return fmt.Sprintf(directKey, a, b) }

func IdemKey(channelID, clientKey string) string { return fmt.Sprintf(idemKey, channelID, clientKey) }

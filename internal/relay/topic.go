package relay

import "strings"

// TopicCodec maps room ids to bus topic names and back. The mapping is a
// fixed prefix and suffix around the room id, e.g. "room:{roomId}:changes".
type TopicCodec struct {
	Prefix string
	Suffix string
}

// Topic derives the bus topic for a room.
func (t TopicCodec) Topic(roomID string) string {
	return t.Prefix + roomID + t.Suffix
}

// Pattern returns the wildcard subscription pattern covering every room.
func (t TopicCodec) Pattern() string {
	return t.Prefix + "*" + t.Suffix
}

// RoomID recovers the room id from a topic name. Returns false when the
// topic does not match the convention.
func (t TopicCodec) RoomID(topic string) (string, bool) {
	if !strings.HasPrefix(topic, t.Prefix) || !strings.HasSuffix(topic, t.Suffix) {
		return "", false
	}
	roomID := topic[len(t.Prefix) : len(topic)-len(t.Suffix)]
	if roomID == "" {
		return "", false
	}
	return roomID, true
}

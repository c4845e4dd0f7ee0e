package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "loopdb"

// Topics builds loopdb MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("loopdb")
//	topics.Change("users", "insert")
//	// Returns: "loopdb/change/users/insert"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// Change returns the topic for one kind of change to a table.
//
// Example: loopdb/change/users/update
func (t Topics) Change(table, action string) string {
	return fmt.Sprintf("%s/change/%s/%s", t.prefix, topicLevel(table), topicLevel(action))
}

// TableChanges matches every change to a table.
//
// Pattern: loopdb/change/users/+
func (t Topics) TableChanges(table string) string {
	return fmt.Sprintf("%s/change/%s/+", t.prefix, topicLevel(table))
}

// AllChanges matches every change topic.
//
// Pattern: loopdb/change/#
func (t Topics) AllChanges() string {
	return fmt.Sprintf("%s/change/#", t.prefix)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: loopdb/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// AllTopics matches everything under the prefix.
//
// Pattern: loopdb/#
func (t Topics) AllTopics() string {
	return t.prefix + "/#"
}

// topicLevel makes s safe to use as a single topic level. SQLite table
// names may contain characters MQTT reserves.
func topicLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		}
		return r
	}, s)
}

package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes of the playout MQTT hierarchy.
//
//	playout/studio/{studio_id}/timeline    core → timeline generator (retained)
//	playout/studio/{studio_id}/playback    playout hardware → core
//	playout/device/{device_id}/function    core → peripheral device
//	playout/system/status                  core online/offline (LWT, retained)
const (
	// TopicPrefix is the base for all playout topics.
	TopicPrefix = "playout"

	// TopicPrefixStudio is the base for per-studio topics.
	TopicPrefixStudio = "playout/studio"

	// TopicPrefixDevice is the base for peripheral device topics.
	TopicPrefixDevice = "playout/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "playout/system"
)

// Topics provides builders for playout MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.StudioTimeline("studio-a")
//	// Returns: "playout/studio/studio-a/timeline"
type Topics struct{}

// StudioTimeline returns the topic the timeline state of a studio is
// published on after every committed playout job.
func (Topics) StudioTimeline(studioID string) string {
	return fmt.Sprintf("%s/%s/timeline", TopicPrefixStudio, studioID)
}

// StudioPlayback returns the topic playout hardware reports playback on.
func (Topics) StudioPlayback(studioID string) string {
	return fmt.Sprintf("%s/%s/playback", TopicPrefixStudio, studioID)
}

// DeviceFunction returns the topic for executing a peripheral device function.
func (Topics) DeviceFunction(deviceID string) string {
	return fmt.Sprintf("%s/%s/function", TopicPrefixDevice, deviceID)
}

// SystemStatus returns the topic for core online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllStudioPlayback returns a wildcard for playback reports of every studio.
func (Topics) AllStudioPlayback() string {
	return TopicPrefixStudio + "/+/playback"
}

// AllDeviceFunctions returns a wildcard for every device function topic.
func (Topics) AllDeviceFunctions() string {
	return TopicPrefixDevice + "/+/function"
}

// AllTopics returns a wildcard for every playout topic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// StudioFromTopic extracts the studio id from a playout/studio/{id}/... topic.
func StudioFromTopic(topic string) (string, bool) {
	tail, ok := strings.CutPrefix(topic, TopicPrefixStudio+"/")
	if !ok {
		return "", false
	}
	studioID, rest, ok := strings.Cut(tail, "/")
	if !ok || studioID == "" || rest == "" {
		return "", false
	}
	return studioID, true
}

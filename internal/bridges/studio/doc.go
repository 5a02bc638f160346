// Package studio connects the playout engine to studio gateways over MQTT.
//
// Outbound, the bridge publishes the timeline state of a studio after every
// committed playout job and executes peripheral device functions on
// activation and deactivation. Inbound, it subscribes to playback reports
// from playout hardware and hands them to a PlaybackHandler, normally the
// job runner.
//
//	Playout Core → playout/studio/{id}/timeline   (retained)
//	Playout Core → playout/device/{id}/function
//	Hardware     → playout/studio/{id}/playback
package studio

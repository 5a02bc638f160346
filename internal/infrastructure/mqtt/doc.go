// Package mqtt connects the playout core to the studio broker.
//
// Traffic on the broker:
//
//	playout/studio/{id}/timeline   core publishes the timeline state (retained)
//	playout/studio/{id}/playback   playout hardware reports what started and stopped
//	playout/device/{id}/function   core asks a peripheral device to run a function
//	playout/system/status          core presence, with an offline last will
//
// The client reconnects with backoff and restores its subscriptions on
// every reconnect. Handlers are invoked on paho goroutines and must not
// block for long.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.Subscribe(mqtt.Topics{}.AllStudioPlayback(), 1, handler)
package mqtt

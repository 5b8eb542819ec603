// Package mqtt publishes Home Assistant MQTT discovery messages and
// periodic sensor state updates. A running ferryd instance appears as
// a native HA device with availability tracking, so "is the ferry
// still moving items" is a dashboard glance instead of a log grep.
//
// Connection management is autopaho's job: it reconnects on its own,
// and an OnConnectionUp hook replays the retained discovery configs
// plus an "online" birth message after every (re-)connect. The broker
// holds an "offline" will message so the device flips to unavailable
// when ferryd dies without saying goodbye.
package mqtt

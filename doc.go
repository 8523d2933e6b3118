// Package thething drives an animatronic robot hand from a handheld
// Bluetooth LE remote.
//
// The remote advertises a single one-byte command characteristic. The robot
// scans for it, connects, polls the byte and plays the finger routine the
// command names.
//
// # Installation
//
//	go install github.com/gwillem/thething/cmd/thething@latest
//
// # Usage
//
// First, run setup to find the hand's servo bus and record joint ranges:
//
//	thething setup
//
// Then start the robot and, on the handheld, the remote:
//
//	thething robot
//	thething controller
//
// Both halves can run in one process over a simulated radio:
//
//	thething sim
//
// # Packages
//
//   - cmd/thething: CLI with controller, robot, sim, routines and setup commands
//   - pkg/command: the one-byte command alphabet
//   - pkg/link: connection state, advertiser and scanner loops
//   - pkg/channel: the command characteristic value and its reader and writer
//   - pkg/sampler: button and stick sampling on the remote
//   - pkg/dispatch: command polling and routine dispatch on the robot
//   - pkg/motion: joints, calibration, routines and the Feetech servo hand
//   - pkg/status: LEDs, panel and splash on the remote
//   - pkg/console: terminal stand-in for the remote's buttons and display
//   - pkg/ble, pkg/bluez: the radio and adapter power
//   - pkg/sim: in-memory radio
//   - pkg/monitor: HTTP status and event stream on the robot
//   - pkg/config: the config file
package thething

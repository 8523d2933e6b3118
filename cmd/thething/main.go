package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config    string `short:"c" long:"config" default:"thething.json" description:"Configuration file (.json, .yaml or .yml)"`
	LogLevel  string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Override the configured log level"`
	LogFormat string `long:"log-format" choice:"console" choice:"json" description:"Override the configured log format"`

	Controller ControllerCommand `command:"controller" alias:"remote" description:"Run the handheld remote (BLE peripheral)"`
	Robot      RobotCommand      `command:"robot" description:"Run the robot hand (BLE central)"`
	Sim        SimCommand        `command:"sim" description:"Run remote and robot in one process over a simulated radio"`
	Routines   RoutinesCommand   `command:"routines" description:"List routines or play one on the hand"`
	Setup      SetupCommand      `command:"setup" description:"Find the hand's servo bus and write the config file"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "thething - BLE remote control for an animatronic hand"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"

	"quadservo/config"
	"quadservo/core"
	"quadservo/sim"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "0.1.0"

	// ConfigFileName is what it sounds like
	ConfigFileName = config.DefaultFileName
)

func root() {
	str := `quadsim runs the servo controller against a simulated three axis machine
and serves its command protocol over TCP, so quadctl can drive it without
hardware.

Usage:
	quadsim <command> [flags]

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `quadsim is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration file the stock three axis board is simulated: 200
counts per unit, 1000-2000 us pulses around a 1500 us neutral with 200 us of
deadband, and endstops at 2 and 21 units.  All PID gains default to zero, so
set at least kp for each axis you want to move.

Each entry of the axes list is layered over the stock axis, so only changed
fields need to be written, e.g.

	tick_period_usec: 15000
	axes:
	  - pid: {kp: 1}
	  - pid: {kp: 1}
	  - pid: {kp: 1, ki: 0.1}

Top-level keys may be overridden by environment variables with the
QUADSERVO_ prefix, such as QUADSERVO_TICK_PERIOD_USEC=10000.

run flags:
	-addr      TCP listen address (default :7700)
	-config    configuration file (default quadservo.yml)
	-debug     print controller debug output`
	fmt.Println(str)
}

func loadConfig(path string) core.MachineConfig {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return cfg
}

func mkconf() {
	c := loadConfig(ConfigFileName)
	if err := config.Save(ConfigFileName, c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadConfig(ConfigFileName)
	if err := config.WriteYAML(os.Stdout, c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("quadsim version %v\n", Version)
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	addr := fs.String("addr", ":7700", "TCP listen address")
	path := fs.String("config", ConfigFileName, "configuration file")
	debug := fs.Bool("debug", false, "print controller debug output")
	fs.Parse(args)

	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(*debug)
	core.InitAsyncDebug()

	m, err := sim.New(loadConfig(*path))
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go serve(ln, m)

	log.Printf("simulating %d axes, listening at %s", m.Ctrl.NumAxes(), ln.Addr())
	if err := m.RunRealtime(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Println("stopped")
}

// serve handles one controller connection at a time, like a serial port
func serve(ln net.Listener, m *sim.Machine) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		log.Printf("host connected from %s", conn.RemoteAddr())
		if err := m.Serve(conn); err != nil {
			log.Printf("connection: %v", err)
		}
		conn.Close()
		log.Printf("host disconnected")
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run(args[2:])
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"quadservo/host/client"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path, or tcp://host:port for quadsim")
	timeout = flag.Duration("timeout", 2*time.Second, "Per-command timeout")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	c, err := client.Dial(dctx, *device)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer c.Close()

	con := newConsole(c, os.Stdout, *timeout)
	con.printDictionary()

	// a command given on the command line runs once
	if flag.NArg() > 0 {
		if err := con.execArgs(ctx, flag.Args()); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		err := con.exec(ctx, scanner.Text())
		if err == errQuit {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading input: %v", err)
	}
}

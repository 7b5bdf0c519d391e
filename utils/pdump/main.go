//
// main.go
//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Pdump dissects hex-encoded packets into layer stacks. Input
// comes from the command line arguments or, with no arguments,
// from the standard input. Extra protocols can be loaded from TOML
// schema files.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/markkurossi/pkt/layer"
	"github.com/markkurossi/pkt/proto"
	"github.com/markkurossi/pkt/schemafile"
	"github.com/rs/zerolog"
)

var schemas = map[string]*layer.Schema{
	"ether": proto.Ether,
	"arp":   proto.ARP,
	"ipv4":  proto.IPv4,
	"udp":   proto.UDP,
	"tcp":   proto.TCP,
	"dns":   proto.DNS,
	"raw":   layer.Raw,
}

func main() {
	protocol := flag.String("p", "ether", "outermost protocol")
	files := flag.String("s", "", "comma-separated TOML schema files")
	rebuild := flag.Bool("r", false, "rebuild the stack and compare")
	verbose := flag.Bool("v", false, "trace dissection")
	flag.Parse()

	if *verbose {
		layer.SetLogger(zerolog.New(zerolog.ConsoleWriter{
			Out: os.Stderr,
		}).Level(zerolog.DebugLevel).With().Timestamp().Logger())
	}

	if len(*files) > 0 {
		for _, file := range strings.Split(*files, ",") {
			c, err := schemafile.Load(file)
			if err != nil {
				fmt.Printf("Failed to load schemas: %s\n", err)
				os.Exit(1)
			}
			c.Register(layer.DefaultRegistry)
			for name, s := range c.Schemas {
				schemas[strings.ToLower(name)] = s
			}
		}
	}

	schema, ok := schemas[strings.ToLower(*protocol)]
	if !ok {
		fmt.Printf("Unknown protocol %s\n", *protocol)
		os.Exit(1)
	}
	proto.Finalize()

	inputs := flag.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) > 0 {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Failed to read input: %s\n", err)
			os.Exit(1)
		}
	}

	rc := 0
	for _, input := range inputs {
		if err := dump(schema, input, *rebuild); err != nil {
			fmt.Printf("%s\n", err)
			rc = 1
		}
	}
	os.Exit(rc)
}

func dump(schema *layer.Schema, input string, rebuild bool) error {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':', '.':
			return -1
		}
		return r
	}, input)

	data, err := hex.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("invalid hex input: %s", err)
	}

	stack, err := layer.Dissect(schema, data)
	if err != nil {
		return fmt.Errorf("dissection failed: %s", err)
	}

	for i, l := range stack.Layers {
		fmt.Printf("%d: %s\n", i, l)
	}
	if stack.Incomplete != nil {
		fmt.Printf("incomplete: %s\n", stack.Incomplete)
	}
	if len(stack.Trailing) > 0 {
		fmt.Printf("trailing %d bytes:\n%s", len(stack.Trailing),
			hex.Dump(stack.Trailing))
	}

	if rebuild {
		built, err := stack.Build()
		if err != nil {
			return fmt.Errorf("rebuild failed: %s", err)
		}
		built = append(built, stack.Trailing...)
		if hex.EncodeToString(built) != hex.EncodeToString(data) {
			fmt.Printf("rebuild differs:\n%s", hex.Dump(built))
		} else {
			fmt.Printf("rebuild matches (%d bytes)\n", len(built))
		}
	}
	return nil
}

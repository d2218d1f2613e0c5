package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "decode":
		err = cmdDecode(os.Args[2:])
	case "roundtrip":
		err = cmdRoundTrip(os.Args[2:])
	case "remap":
		err = cmdRemap(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `cilmeta: ECMA-335 signature codec and token remapper

Usage:
  cilmeta decode    (--hex <bytes> | --manifest <file>) [--format text|json|cbor]
                                                   Decode signature blobs
  cilmeta roundtrip (--hex <bytes> | --manifest <file>) [--format text|json|cbor]
                                                   Decode and re-encode, compare bytes
  cilmeta remap     --manifest <file> [--out <file>] [--map <file>]
                                                   Assign fresh tokens and patch signatures
  cilmeta graph     --manifest <file> [--out <file.dot>]
                                                   Type reference graph as DOT

Flags:
  --config <file>       TOML configuration
  --strict              Fail on first malformed blob
  --best-effort         Report malformed blobs and continue
  --max-depth <n>       Type signature nesting limit
  --log-level <level>   debug, info, warn, error or quiet
`)
}

// Command l3dump decodes GSM Layer-3 messages from hex-encoded octet
// strings (one per line on stdin, or given as trailing arguments) and
// prints their header and field contents: a line-oriented stdin decoder
// that accepts raw hex bytes and prints a human-readable trace of what
// it parsed, using internal/l3's text sink to walk the fields.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/openbts-go/btscore/internal/bitvector"
	"github.com/openbts-go/btscore/internal/l3"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		for _, a := range args {
			dumpLine(a)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dumpLine(line)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "l3dump: reading stdin:", err)
		os.Exit(1)
	}
}

// dumpLine decodes one whitespace-separated hex octet string and prints
// the decoded message, or an error, to stdout -- never aborting the
// whole run on one malformed line, "malformed
// message... calling dispatcher logs and drops the frame" policy.
func dumpLine(line string) {
	raw, err := decodeHex(line)
	if err != nil {
		fmt.Printf("%s -> ERROR: %v\n", line, err)
		return
	}
	if len(raw) < 2 {
		fmt.Printf("%s -> ERROR: %v\n", line, l3.ErrTruncated)
		return
	}

	bv := bitvector.NewFromBytes(raw)
	msg, h, err := l3.Decode(bv)
	if err != nil {
		fmt.Printf("%s -> ERROR: %v\n", line, err)
		return
	}

	sink := l3.NewTextSink()
	msg.WriteBody(sink)

	tiDesc := fmt.Sprintf("skip=%d", h.SkipIndicator)
	if h.PD == l3.PDCallControl || h.PD == l3.PDNonCallSS {
		tiDesc = fmt.Sprintf("ti=%d originator=%v extended=%v", h.TI, h.TIOriginator, h.TIIsExtended)
	}

	fmt.Printf("PD=0x%x MTI=0x%x %s :: %s\n", h.PD, h.MessageType, tiDesc, sink.String())
}

// decodeHex accepts hex octets separated by whitespace ("1b 2c 3d") or
// run together ("1b2c3d").
func decodeHex(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) > 1 {
		joined := strings.Join(fields, "")
		return hex.DecodeString(joined)
	}
	return hex.DecodeString(strings.ReplaceAll(line, " ", ""))
}

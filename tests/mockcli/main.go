// Mock external CLI tool for integration testing.
// Speaks the bridge's argument grammar and stream-json wire protocol.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	sessionID := flag.String("session-id", "", "conversation continuity token")
	addDir := flag.String("add-dir", "", "working context root")
	outputFormat := flag.String("output-format", "", "output format")
	allowedTools := flag.String("allowedTools", "", "capability allowlist")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("mockcli 1.0.0")
		return
	}

	message := flag.Arg(0)

	// Trigger messages for failure-path testing
	switch message {
	case "TIMEOUT":
		emit(map[string]interface{}{"type": "content", "content": "stalling..."})
		time.Sleep(10 * time.Minute)
	case "FAIL":
		fmt.Fprintln(os.Stderr, "mockcli: simulated failure")
		os.Exit(3)
	case "EMPTY":
		os.Exit(0)
	case "MALFORMED":
		emit(map[string]interface{}{"type": "content", "content": "before"})
		fmt.Println("{not valid json")
		emit(map[string]interface{}{"type": "content", "content": "after"})
		emit(map[string]interface{}{"type": "end"})
		return
	}

	events := []map[string]interface{}{
		{"type": "metadata", "metadata": map[string]interface{}{
			"session_id":    *sessionID,
			"working_dir":   *addDir,
			"output_format": *outputFormat,
			"allowed_tools": *allowedTools,
		}},
		{"type": "content", "content": "Echo: " + message},
		{"type": "end"},
	}

	for _, event := range events {
		time.Sleep(20 * time.Millisecond) // simulate streaming delay
		emit(event)
	}
}

func emit(event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Println(string(data))
}

// Command client is a small CLI against a running dispenser's HTTP API:
// submit a file and print its commitment, or retrieve a commitment and
// print (or save) the reconstructed blob.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8090", "dispenser base URL")
	out := flag.String("out", "", "retrieve: file to write the blob to (default stdout)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: client [-addr url] submit <file> | retrieve <hex-root> [-out file]")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var err error
	switch args[0] {
	case "submit":
		err = runSubmit(client, *addr, args[1])
	case "retrieve":
		err = runRetrieve(client, *addr, args[1], *out)
	default:
		err = fmt.Errorf("unknown command %q, want submit or retrieve", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type submitRequest struct {
	Data string `json:"data"`
}

type submitResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Commitment  string              `json:"commitment,omitempty"`
	Assignments map[string][]uint16 `json:"assignments,omitempty"`
}

func runSubmit(client *http.Client, addr, path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	body, err := json.Marshal(submitRequest{Data: hex.EncodeToString(blob)})
	if err != nil {
		return err
	}
	resp, err := client.Post(addr+"/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post submit: %w", err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode submit response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("submit rejected: %s", out.Message)
	}
	fmt.Printf("commitment: %s\n", out.Commitment)
	for provider, indices := range out.Assignments {
		fmt.Printf("  %s: %d chunks\n", provider, len(indices))
	}
	return nil
}

type retrieveRequest struct {
	Commitment string `json:"commitment"`
}

type retrieveResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    *string `json:"data"`
}

func runRetrieve(client *http.Client, addr, root, outPath string) error {
	body, err := json.Marshal(retrieveRequest{Commitment: root})
	if err != nil {
		return err
	}
	resp, err := client.Post(addr+"/retrieve", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post retrieve: %w", err)
	}
	defer resp.Body.Close()

	var out retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode retrieve response: %w", err)
	}
	if !out.Success || out.Data == nil {
		return fmt.Errorf("retrieve failed: %s", out.Message)
	}
	blob, err := hex.DecodeString(*out.Data)
	if err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}

	if outPath == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(blob))
		return err
	}
	return os.WriteFile(outPath, blob, 0o644)
}

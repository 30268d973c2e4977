package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"chainhook/pkg/utils"
)

// registerCmd posts a predicate JSON document to a running chainhook-node's
// registration server, for operators who prefer a CLI to a raw HTTP call.
func registerCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "register [predicate.json]",
		Short: "register a predicate against a running chainhook-node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(addr, args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", utils.EnvOrDefault("CHAINHOOK_REGISTRATION_ADDR", "http://127.0.0.1:20455"), "registration server base URL")
	return cmd
}

func runRegister(addr, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return utils.Wrap(err, "read predicate file")
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return utils.Wrap(err, "parse predicate file")
	}

	resp, err := http.Post(addr+"/v1/chainhooks/", "application/json", bytes.NewReader(body))
	if err != nil {
		return utils.Wrap(err, "submit predicate")
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return utils.Wrap(err, "decode response")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration rejected (%d): %v", resp.StatusCode, result)
	}
	fmt.Printf("registered predicate %v\n", result["uuid"])
	if warnings, ok := result["warnings"].([]interface{}); ok {
		for _, w := range warnings {
			fmt.Printf("warning: %v\n", w)
		}
	}
	return nil
}

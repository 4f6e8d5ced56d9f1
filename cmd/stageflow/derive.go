package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eduxora/stageflow/pkg/api"
	"github.com/eduxora/stageflow/pkg/progress"
)

var deriveFlags struct {
	workflow        string
	history         string
	current         string
	currentResponse string
	json            bool
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a progress view offline from YAML or JSON files",
	Long: "Evaluate the progress engine against a request history file and an optional " +
		"workflow definition file. Without --workflow the definition nested in the request is used.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDerive(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	f := deriveCmd.Flags()
	f.StringVarP(&deriveFlags.workflow, "workflow", "w", "", "Workflow definition file")
	f.StringVarP(&deriveFlags.history, "history", "r", "", "Workflow request file with its stage history")
	f.StringVar(&deriveFlags.current, "current", "", "Stage id the request is waiting on")
	f.StringVar(&deriveFlags.currentResponse, "current-response", "", "Pending stage-response id")
	f.BoolVar(&deriveFlags.json, "json", false, "Print the view as JSON")
	_ = deriveCmd.MarkFlagRequired("history")
}

func runDerive(ctx context.Context, w io.Writer) error {
	req, err := readFile[api.WorkflowRequest](deriveFlags.history)
	if err != nil {
		return err
	}
	var def *api.WorkflowDefinition
	if deriveFlags.workflow != "" {
		if def, err = readFile[api.WorkflowDefinition](deriveFlags.workflow); err != nil {
			return err
		}
	} else if req.Workflow == nil {
		return errors.New("no workflow definition: pass --workflow or nest one in the request file")
	}

	current := api.CurrentStage{ID: deriveFlags.currentResponse, StageID: deriveFlags.current}

	engine := progress.New(progress.WithObserver(api.NoopObserver{}))
	view := engine.Derive(ctx, def, req, current)
	if deriveFlags.json {
		return writeJSON(w, view)
	}
	_, err = io.WriteString(w, renderView(view))
	return err
}

func readFile[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := decodeDocument[T](data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// decodeDocument reads YAML (a superset of JSON) into T. The document goes
// through the JSON form of the api types so both formats share one schema.
func decodeDocument[T any](data []byte) (*T, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	raw, err := json.Marshal(stringifyIDs(doc))
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &v, nil
}

// stringifyIDs turns numeric values of id-like keys ("id", "stageId", ...)
// into strings, since hand-written files rarely quote them. Field responses
// are opaque and left untouched.
func stringifyIDs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == "fieldResponses" {
				continue
			}
			if isIDKey(k) {
				if s, ok := numberString(val); ok {
					t[k] = s
					continue
				}
			}
			if list, ok := val.([]any); ok && isIDListKey(k) {
				for i, item := range list {
					if s, ok := numberString(item); ok {
						list[i] = s
					}
				}
				continue
			}
			t[k] = stringifyIDs(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = stringifyIDs(t[i])
		}
		return t
	default:
		return v
	}
}

func isIDKey(k string) bool {
	return k == "id" || strings.HasSuffix(k, "Id")
}

func isIDListKey(k string) bool {
	return k == "formFields" || k == "formSections"
}

func numberString(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

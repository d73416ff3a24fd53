// Command formengine-cli drives a form definition through an interactive
// wizard: it prompts for each visible element, feeds answers to the engine,
// and gates submission on the navigation check.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/form"
)

type definitionFile struct {
	Title    string                   `yaml:"title" json:"title"`
	Elements []form.ElementDefinition `yaml:"elements" json:"elements"`
}

func main() {
	definition := flag.String("definition", "form.yaml", "form definition file (YAML or JSON)")
	prefill := flag.String("data", "", "optional JSON object with pre-filled values")
	lenient := flag.Bool("lenient", false, "degrade configuration errors instead of failing")
	flag.Parse()

	doc, err := loadDefinition(*definition)
	if err != nil {
		log.Fatalf("load definition: %v", err)
	}

	opts := []engine.Option{engine.WithRegistry(bridge.NewRegistry())}
	if *lenient {
		opts = append(opts, engine.WithLenient())
	}

	eng, err := engine.New(doc.Elements, opts...)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer eng.Cleanup()

	if *prefill != "" {
		values := map[string]any{}
		if err := json.Unmarshal([]byte(*prefill), &values); err != nil {
			log.Fatalf("parse -data: %v", err)
		}
		if _, err := eng.InitializeWithData(values); err != nil {
			log.Fatalf("initialize: %v", err)
		}
	}

	if doc.Title != "" {
		fmt.Println(doc.Title)
		fmt.Println(strings.Repeat("=", len(doc.Title)))
	}

	for {
		if err := runPass(eng); err != nil {
			log.Fatalf("prompt: %v", err)
		}

		errs, err := eng.ValidateAll()
		if err != nil {
			log.Fatalf("validate: %v", err)
		}
		if len(errs) == 0 {
			break
		}
		fmt.Println()
		for _, id := range eng.ElementIDs() {
			for _, verr := range errs[id] {
				fmt.Printf("  ✗ %s\n", verr.Message)
			}
		}
		retry := false
		if err := survey.AskOne(&survey.Confirm{Message: "Fix the highlighted answers?", Default: true}, &retry); err != nil {
			log.Fatalf("prompt: %v", err)
		}
		if !retry {
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println("Form complete:")
	snap := eng.Snapshot()
	for _, id := range eng.ElementIDs() {
		if value, ok := snap.Value(id); ok {
			fmt.Printf("  %s: %v\n", id, value)
		}
	}
}

// runPass prompts for every visible, enabled, non-derived element against the
// engine's latest snapshot. Visibility is re-read after each answer so
// elements revealed by earlier answers get prompted in the same pass.
func runPass(eng *engine.Engine) error {
	for _, id := range eng.ElementIDs() {
		def, _ := eng.Definition(id)
		if def.Value != "" {
			continue
		}
		snap := eng.Snapshot()
		if !snap.Visible(id) || !snap.Enabled(id) {
			continue
		}

		value, err := ask(def, snap)
		if err != nil {
			return err
		}
		next, err := eng.UpdateValue(id, value, engine.SourceUser)
		if err != nil {
			return err
		}
		for _, verr := range next.Errors(id) {
			fmt.Printf("  ✗ %s\n", verr.Message)
		}
	}
	return nil
}

func ask(def form.ElementDefinition, snap *form.Snapshot) (any, error) {
	label := def.Label
	if label == "" {
		label = def.ID
	}

	if choices := snap.Choices(def.ID); len(choices) > 0 {
		options := make([]string, len(choices))
		byLabel := make(map[string]any, len(choices))
		for i, choice := range choices {
			options[i] = choice.Label
			byLabel[choice.Label] = choice.Value
		}
		var picked string
		if err := survey.AskOne(&survey.Select{Message: label, Options: options}, &picked); err != nil {
			return nil, err
		}
		return byLabel[picked], nil
	}

	if def.Type == form.ElementTypeBoolean {
		var answer bool
		if err := survey.AskOne(&survey.Confirm{Message: label}, &answer); err != nil {
			return nil, err
		}
		return answer, nil
	}

	var answer string
	if err := survey.AskOne(&survey.Input{Message: label, Help: def.Description}, &answer); err != nil {
		return nil, err
	}
	return coerceAnswer(def.Type, answer), nil
}

func coerceAnswer(kind form.ElementType, raw string) any {
	trimmed := strings.TrimSpace(raw)
	switch kind {
	case form.ElementTypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	case form.ElementTypeNumber:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return raw
}

func loadDefinition(path string) (definitionFile, error) {
	var doc definitionFile
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return doc, err
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

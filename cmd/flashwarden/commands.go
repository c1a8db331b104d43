package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flashwarden/flashwarden/internal/engine"
	"github.com/flashwarden/flashwarden/internal/inventory"
	"github.com/flashwarden/flashwarden/internal/log"
	"github.com/flashwarden/flashwarden/internal/model"
	"github.com/flashwarden/flashwarden/internal/options"
	"github.com/flashwarden/flashwarden/internal/task"
)

var (
	flagDevice string
	flagInputs []string
)

func init() {
	flashCmd.Flags().StringVar(&flagDevice, "device", "", "device path to run the workflow against")
	flashCmd.Flags().StringArrayVar(&flagInputs, "input", nil, "workflow input as name=value, repeatable; empty values use the collaborator default")
	_ = flashCmd.MarkFlagRequired("device")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run supervises the device inventory and the authentication session",
	RunE:  doRun,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "devices lists removable storage devices once",
	RunE:  doDevices,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "options fetches and prints the workflow input schema",
	RunE:  doOptions,
}

var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "flash starts a workflow run for one device and waits for it",
	RunE:  doFlash,
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("flashwarden",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	eng, err := engine.New(config)
	if err != nil {
		return err
	}
	return eng.Do(ctx)
}

func doDevices(cmd *cobra.Command, args []string) error {
	rows, err := inventory.NewPoller(config.Collaborators.Inventory).Poll(cmd.Context())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no removable devices found")
		return nil
	}
	for _, row := range rows {
		fmt.Println(row.Label())
	}
	return nil
}

func doOptions(cmd *cobra.Command, args []string) error {
	text, _, err := options.NewFetcher(config.Collaborators.Workflow).Fetch(cmd.Context())
	if err != nil {
		return err
	}

	doc, err := options.Parse(text)
	if err != nil {
		return err
	}
	if len(doc.Order) == 0 {
		fmt.Println("no inputs available")
		return nil
	}

	for _, name := range doc.Order {
		spec := doc.Fields[name]
		label := name
		if spec.Required {
			label += " *"
		}
		fmt.Printf("%s (%s)\n", label, orAny(spec.Type))
		if spec.Description != "" {
			fmt.Printf("  %s\n", spec.Description)
		}
		if spec.Default != nil && spec.Default != "" {
			fmt.Printf("  default: %v\n", spec.Default)
		}
		if spec.HasOptions {
			var values []string
			for _, v := range spec.Options {
				if v == nil {
					values = append(values, "")
					continue
				}
				values = append(values, fmt.Sprint(v))
			}
			fmt.Printf("  options: %s\n", strings.Join(values, ", "))
		}
	}
	return nil
}

func orAny(t string) string {
	if t == "" {
		return "string"
	}
	return t
}

func doFlash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	inputs := make(map[string]string, len(flagInputs))
	for _, kv := range flagInputs {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid --input %q, expected name=value", kv)
		}
		inputs[name] = strings.TrimSpace(value)
	}

	sup := task.NewSupervisor(config.Collaborators.Workflow)
	if _, err := sup.StartRun(ctx, flagDevice, inputs); err != nil && !errors.Is(err, task.ErrRunInProgress) {
		return err
	}

	printedURL := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sup.Events():
			switch ev.Kind {
			case task.ProgressChanged:
				fmt.Printf("progress: %d%%\n", ev.Percent)
			case task.OutputChanged:
				if snap, ok := sup.Snapshot(flagDevice); ok && snap.RunURL != "" && !printedURL {
					printedURL = true
					fmt.Println(snap.RunURL)
				}
			case task.Finished:
				snap, ok := sup.Snapshot(flagDevice)
				if !ok {
					return fmt.Errorf("run record for %s vanished", flagDevice)
				}
				if out := snap.CombinedOutput(); out != "" {
					fmt.Println(out)
				}
				fmt.Println(snap.State.Label())
				if snap.State != model.StateDone {
					return fmt.Errorf("workflow for %s failed", flagDevice)
				}
				return nil
			}
		}
	}
}
